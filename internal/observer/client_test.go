package observer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parasited/internal/controllers"
	"parasited/internal/models"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type authorityServer struct {
	url   string
	store *storage.NotifyingStore
	hub   services.ChangeHubInterface
	clock *testutil.FakeClock
}

func startAuthority(t *testing.T) *authorityServer {
	t.Helper()
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	conf := testConfig()
	hub := services.NewChangeHub(conf, logger, metrics)
	t.Cleanup(hub.Close)
	store := storage.NewNotifyingStore(storage.NewMemoryStore(), hub)
	clock := testutil.NewFakeClock(testNow)
	queue := services.NewMutationQueue(logger, metrics)
	t.Cleanup(queue.Close)
	authority := services.NewStateAuthority(store, queue, clock, logger, metrics)

	api := controllers.NewApiController(logger, authority, testutil.NewMockCache(), store, clock)
	changes := controllers.NewChangesController(conf, hub, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/message", api.PostMessage)
	mux.HandleFunc("/changes", changes.Stream)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &authorityServer{url: srv.URL, store: store, hub: hub, clock: clock}
}

func TestClient_Send(t *testing.T) {
	srv := startAuthority(t)
	c := NewClient(srv.url+"/", time.Second)

	snap, err := c.Send(context.Background(), models.Request{Type: models.MessageViewRecorded, ItemID: "abc", Seconds: 4})
	require.NoError(t, err)
	assert.Equal(t, models.DayUsage{ViewCount: 1, WatchedSeconds: 4}, snap.Today)
	assert.Equal(t, []models.AchievementID{models.AchievementFirstBlood}, snap.NewAchievements)
}

func TestClient_RemoteError(t *testing.T) {
	srv := startAuthority(t)
	c := NewClient(srv.url, time.Second)

	_, err := c.Send(context.Background(), models.Request{Type: "dance"})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "unknown message type")
	assert.False(t, IsStateUnknown(err))
}

func TestClient_TimeoutIsStateUnknown(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Send(context.Background(), models.Request{Type: models.MessageSnapshotRequest})
	assert.True(t, IsStateUnknown(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_UnreachableIsStateUnknown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Send(context.Background(), models.Request{Type: models.MessageSnapshotRequest})
	assert.True(t, errors.Is(err, ErrStateUnknown))
}

func TestClient_UndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), models.Request{Type: models.MessageSnapshotRequest})
	assert.True(t, IsStateUnknown(err))
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, defaultCallTimeout, NewClient("http://localhost", 0).timeout)
}
