package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/structures"
	"parasited/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testConfig(driver string) *structures.Config {
	return &structures.Config{
		Storage: structures.StorageConfig{
			Driver:       driver,
			SaveInterval: 50 * time.Millisecond,
		},
		Retention: structures.RetentionConfig{
			Days:     7,
			Interval: 50 * time.Millisecond,
		},
	}
}

type mockPersister struct {
	calls *atomic.Int64
	err   error
}

func (m *mockPersister) Persist() error {
	m.calls.Inc()
	return m.err
}

type schedulerFixture struct {
	store     *testutil.FailingStore
	logger    *testutil.MockLogger
	persister *mockPersister
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T, conf *structures.Config) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		store:     &testutil.FailingStore{Inner: storage.NewMemoryStore()},
		logger:    &testutil.MockLogger{},
		persister: &mockPersister{calls: atomic.NewInt64(0)},
	}
	metrics := testutil.NewMockMetrics()
	q := services.NewMutationQueue(f.logger, metrics)
	t.Cleanup(q.Close)
	authority := services.NewStateAuthority(f.store, q, testutil.NewFakeClock(testNow), f.logger, metrics)
	f.scheduler = NewScheduler(conf, f.logger, authority, f.persister, metrics).(*Scheduler)
	return f
}

func (f *schedulerFixture) seed(t *testing.T, kv map[string]string) {
	t.Helper()
	entries := make(map[string][]byte, len(kv))
	for k, v := range kv {
		entries[k] = []byte(v)
	}
	require.NoError(t, f.store.Inner.Set(context.Background(), entries))
}

func (f *schedulerFixture) keys(t *testing.T) map[string][]byte {
	t.Helper()
	all, err := f.store.Inner.GetAll(context.Background())
	require.NoError(t, err)
	return all
}

func TestScheduler_Startup(t *testing.T) {
	f := newSchedulerFixture(t, testConfig("memory"))
	f.seed(t, map[string]string{
		"p_day_2024-04-01":  `{"shorts":40,"seconds":100}`,
		"p_day_2024-05-09":  `{"shorts":3,"seconds":100}`,
		models.KeyEvolution: `{"level":0,"streak":0}`,
		models.KeyLockState: `{"until":1,"message":"old","totalSeconds":30}`,
	})

	require.NoError(t, f.scheduler.Startup(context.Background()))

	all := f.keys(t)
	assert.NotContains(t, all, "p_day_2024-04-01")
	assert.JSONEq(t, `{"viewCount":3,"watchedSeconds":100}`, string(all["p_day_2024-05-09"]))
	assert.Equal(t, models.SchemaVersion, models.DecodeInt(all[models.KeySchemaVersion]))
	assert.Equal(t, models.Evolution{Level: 1, Streak: 1}, models.DecodeEvolution(all[models.KeyEvolution]))
	assert.Nil(t, models.DecodeLockState(all[models.KeyLockState]))
}

func TestScheduler_StartupContinuesAfterFailures(t *testing.T) {
	f := newSchedulerFixture(t, testConfig("memory"))
	f.store.Fail(true, false, false)

	err := f.scheduler.Startup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Contains(t, err.Error(), "migrate")
	assert.Contains(t, err.Error(), "streak")
	assert.Contains(t, err.Error(), "cleanup")
	assert.Contains(t, err.Error(), "sweep")
	assert.Equal(t, 4, appErrors(f.logger))
}

func appErrors(l *testutil.MockLogger) int {
	n := 0
	for _, e := range l.Logs {
		if e.Level == "error" && e.Type == providers.TypeApp {
			n++
		}
	}
	return n
}

func TestScheduler_SetRetentionDays(t *testing.T) {
	f := newSchedulerFixture(t, testConfig("memory"))
	f.seed(t, map[string]string{
		"p_day_2024-05-01": `{"viewCount":1,"watchedSeconds":0}`,
		"p_day_2024-05-04": `{"viewCount":1,"watchedSeconds":0}`,
		"p_day_2024-05-08": `{"viewCount":1,"watchedSeconds":0}`,
	})

	// 7 days back from 2024-05-10: cutoff is 2024-05-03.
	f.scheduler.RunMaintenance(context.Background())
	all := f.keys(t)
	assert.NotContains(t, all, "p_day_2024-05-01")
	assert.Contains(t, all, "p_day_2024-05-04")
	assert.Contains(t, all, "p_day_2024-05-08")

	f.scheduler.SetRetentionDays(0)
	assert.Equal(t, int64(7), f.scheduler.retentionDays.Load())

	f.scheduler.SetRetentionDays(5)
	f.scheduler.RunMaintenance(context.Background())
	all = f.keys(t)
	assert.NotContains(t, all, "p_day_2024-05-04")
	assert.Contains(t, all, "p_day_2024-05-08")
}

func TestScheduler_DefaultRetention(t *testing.T) {
	conf := testConfig("memory")
	conf.Retention.Days = 0
	f := newSchedulerFixture(t, conf)
	assert.Equal(t, int64(models.DefaultRetentionDays), f.scheduler.retentionDays.Load())
}

func TestScheduler_Persist(t *testing.T) {
	f := newSchedulerFixture(t, testConfig("file"))
	require.NoError(t, f.scheduler.Persist())
	assert.Equal(t, int64(1), f.persister.calls.Load())

	f.persister.err = errors.New("disk full")
	assert.Error(t, f.scheduler.Persist())
	assert.Equal(t, 1, f.logger.Count("error"))
}

func TestScheduler_PersistWithoutPersister(t *testing.T) {
	s := NewScheduler(testConfig("memory"), &testutil.MockLogger{}, nil, nil, testutil.NewMockMetrics())
	assert.NoError(t, s.Persist())
}

func TestScheduler_InitRunsTicks(t *testing.T) {
	f := newSchedulerFixture(t, testConfig("file"))
	f.seed(t, map[string]string{"p_day_2024-04-01": `{"viewCount":1,"watchedSeconds":0}`})

	f.scheduler.Init()
	defer f.scheduler.Stop()

	assert.Eventually(t, func() bool {
		all, err := f.store.Inner.GetAll(context.Background())
		if err != nil {
			return false
		}
		_, stale := all["p_day_2024-04-01"]
		return !stale && f.persister.calls.Load() > 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_StopBeforeInit(t *testing.T) {
	s := NewScheduler(testConfig("memory"), &testutil.MockLogger{}, nil, nil, testutil.NewMockMetrics())
	assert.NotPanics(t, s.Stop)
}
