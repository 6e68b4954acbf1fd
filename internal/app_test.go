package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"parasited/internal/controllers"
	"parasited/internal/models"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/structures"
	"parasited/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type mockScheduler struct {
	mu         sync.Mutex
	calls      []string
	startupErr error
	days       int
}

func (m *mockScheduler) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockScheduler) Init()                            { m.record("init") }
func (m *mockScheduler) Stop()                            { m.record("stop") }
func (m *mockScheduler) RunMaintenance(_ context.Context) { m.record("maintenance") }
func (m *mockScheduler) Persist() error                   { m.record("persist"); return nil }
func (m *mockScheduler) SetRetentionDays(days int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = days
}
func (m *mockScheduler) Startup(_ context.Context) error {
	m.record("startup")
	return m.startupErr
}

func (m *mockScheduler) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type closeTrackingStore struct {
	storage.StoreInterface
	closed bool
}

func (c *closeTrackingStore) Close() error {
	c.closed = true
	return c.StoreInterface.Close()
}

type appEnv struct {
	conf      *structures.Config
	logger    *testutil.MockLogger
	api       *controllers.ApiController
	hub       services.ChangeHubInterface
	queue     services.MutationQueueInterface
	store     *closeTrackingStore
	scheduler *mockScheduler
	metrics   *testutil.MockMetrics
}

func newAppEnv(t *testing.T) *appEnv {
	t.Helper()
	conf := &structures.Config{
		AppName:   "parasited-test",
		WebServer: structures.Server{Host: "127.0.0.1", Port: 0},
		Storage:   structures.StorageConfig{Driver: "memory"},
		Sync:      structures.SyncConfig{PingInterval: 250 * time.Millisecond, SubscriberBuffer: 16},
	}
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	hub := services.NewChangeHub(conf, logger, metrics)
	notifying := storage.NewNotifyingStore(storage.NewMemoryStore(), hub)
	clock := testutil.NewFakeClock(testNow)
	queue := services.NewMutationQueue(logger, metrics)
	t.Cleanup(queue.Close)
	authority := services.NewStateAuthority(notifying, queue, clock, logger, metrics)
	return &appEnv{
		conf:      conf,
		logger:    logger,
		api:       controllers.NewApiController(logger, authority, testutil.NewMockCache(), notifying, clock),
		hub:       hub,
		queue:     queue,
		store:     &closeTrackingStore{StoreInterface: notifying},
		scheduler: &mockScheduler{},
		metrics:   testutil.NewMockMetrics(),
	}
}

func (e *appEnv) app() *App {
	return NewApp(
		e.api,
		controllers.NewHealthController(e.conf, e.queue, e.hub),
		controllers.NewChangesController(e.conf, e.hub, e.logger),
		e.scheduler, e.hub, e.queue, e.store, e.conf, e.logger,
		InitRoutes(e.api, e.conf), e.metrics,
	)
}

func TestApp_ServesApiHealthAndChanges(t *testing.T) {
	env := newAppEnv(t)
	srv := httptest.NewServer(env.app().WebServer.Handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/changes", nil)
	require.NoError(t, err, "the change stream must upgrade behind the metrics middleware")
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"type":"view_recorded","itemId":"abc","seconds":3}`))
	require.NoError(t, err)
	var out models.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, models.ResponseState, out.Type)
	require.NotNil(t, out.State)
	assert.Equal(t, 1, out.State.Today.ViewCount)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change models.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.NotEmpty(t, change.Entity)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["subscribers"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode, "metrics endpoint is off when disabled")
}

func TestApp_ChangeStreamIsInstrumented(t *testing.T) {
	env := newAppEnv(t)
	srv := httptest.NewServer(env.app().WebServer.Handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/changes", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, env.metrics.Count("requests:/changes"), "a stream is counted once it ends")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return env.metrics.Count("requests:/changes") == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, env.metrics.Count("requests:/health"), "infrastructure routes stay uninstrumented")
}

func TestApp_RunAndShutdown(t *testing.T) {
	env := newAppEnv(t)
	env.scheduler.startupErr = errors.New("migrate: injected")
	app := env.app()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		calls := env.scheduler.Calls()
		return len(calls) >= 2 && calls[1] == "init"
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"startup", "init", "stop", "persist"}, env.scheduler.Calls())
	assert.True(t, env.store.closed)
	assert.Equal(t, 1, env.logger.Count("error"), "startup failure is logged, not fatal")

	err := env.queue.Do(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, services.ErrQueueClosed, "the queue is closed during shutdown")
}

func TestApp_Reload(t *testing.T) {
	env := newAppEnv(t)
	app := env.app()

	conf := *env.conf
	conf.Retention.Days = 14
	conf.Logger.Level = "debug"
	app.Reload(&conf)

	assert.Equal(t, 14, env.scheduler.days)
}

func TestToolbox_Close(t *testing.T) {
	env := newAppEnv(t)
	tb := NewToolbox(nil, env.queue, env.store, env.logger)
	require.NoError(t, tb.Close())
	assert.True(t, env.store.closed)
}
