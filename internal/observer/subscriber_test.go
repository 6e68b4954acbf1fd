package observer

import (
	"context"
	"strings"
	"testing"
	"time"

	"parasited/internal/models"
	"parasited/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_MergesAuthorityWrites(t *testing.T) {
	srv := startAuthority(t)
	o := NewObserver(NewClient(srv.url, time.Second), testutil.NewFakeClock(testNow), &testutil.MockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.Subscribe(ctx, "ws"+strings.TrimPrefix(srv.url, "http")+"/changes")
	}()
	require.Eventually(t, func() bool { return srv.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	// another observer's view reaches this one only through the stream
	other := NewClient(srv.url, time.Second)
	_, err := other.Send(context.Background(), models.Request{Type: models.MessageViewRecorded, ItemID: "abc", Seconds: 7})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v := o.View().Snapshot
		return v.Today.ViewCount == 1 && models.HasAchievement(v.Achievements, models.AchievementFirstBlood)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 7, o.View().Snapshot.Today.WatchedSeconds)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestSubscribe_HubCloseEndsStream(t *testing.T) {
	srv := startAuthority(t)
	o := NewObserver(NewClient(srv.url, time.Second), testutil.NewFakeClock(testNow), &testutil.MockLogger{})

	done := make(chan error, 1)
	go func() {
		done <- o.Subscribe(context.Background(), "ws"+strings.TrimPrefix(srv.url, "http")+"/changes")
	}()
	require.Eventually(t, func() bool { return srv.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	srv.hub.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after the hub closed")
	}
}

func TestSubscribe_DialFailure(t *testing.T) {
	o := NewObserver(&fakeClient{}, testutil.NewFakeClock(testNow), &testutil.MockLogger{})
	err := o.Subscribe(context.Background(), "ws://127.0.0.1:1/changes")
	assert.True(t, IsStateUnknown(err))
}

func TestEndToEnd_TenthViewLocks(t *testing.T) {
	srv := startAuthority(t)
	clock := testutil.NewFakeClock(testNow)
	o := NewObserver(NewClient(srv.url, time.Second), clock, &testutil.MockLogger{})

	for i := 0; i < models.DailyGoodThreshold; i++ {
		clock.Advance(time.Second)
		_, err := o.ObserveItem(context.Background(), "item-"+itoa(int64(i)))
		require.NoError(t, err)
	}

	view := o.View()
	assert.False(t, view.Degraded)
	assert.Equal(t, 10, view.Snapshot.Today.ViewCount)
	remaining, active := o.Lockdown(srv.clock.Now())
	assert.True(t, active)
	assert.Equal(t, 30, remaining)

	sent, err := o.ObserveItem(context.Background(), "item-during-lock")
	require.NoError(t, err)
	assert.False(t, sent)
}
