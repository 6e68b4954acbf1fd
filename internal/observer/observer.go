package observer

import (
	"context"
	"errors"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/services"
	"slices"
	"sync"
	"time"
)

// View is what a page renders. Degraded is set after the last call to the
// authority failed; Snapshot is then the last known state.
type View struct {
	Snapshot models.Snapshot
	Degraded bool
}

// Observer is the page side of the sync contract. It keeps one cached
// snapshot, reports item transitions and derives the lockdown countdown.
type Observer struct {
	client    ClientInterface
	clock     services.ClockInterface
	logger    providers.Logger
	startedAt time.Time

	mu            sync.Mutex
	snap          models.Snapshot
	todayDate     string // date snap.Today belongs to
	degraded      bool
	lastItem      string
	feedEnteredAt time.Time
	enduredUntil  int64
}

func NewObserver(client ClientInterface, clock services.ClockInterface, logger providers.Logger) *Observer {
	return &Observer{
		client:    client,
		clock:     clock,
		logger:    logger,
		startedAt: clock.Now(),
		snap:      models.DefaultSnapshot(),
		todayDate: models.FormatDate(clock.Now()),
	}
}

func (o *Observer) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{Snapshot: cloneSnapshot(o.snap), Degraded: o.degraded}
}

// send delivers req and adopts the response. On failure the cached
// snapshot is returned together with the error.
func (o *Observer) send(ctx context.Context, req models.Request) (models.Snapshot, error) {
	snap, err := o.client.Send(ctx, req)
	now := o.clock.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		var remote *RemoteError
		if !errors.As(err, &remote) {
			o.degraded = true
		}
		o.logger.Warnf(providers.TypeSync, "Request %s failed: %s", req.Type, err)
		return cloneSnapshot(o.snap), err
	}
	o.snap = cloneSnapshot(snap)
	o.todayDate = models.FormatDate(now)
	o.degraded = false
	return cloneSnapshot(o.snap), nil
}

func (o *Observer) Refresh(ctx context.Context) (models.Snapshot, error) {
	return o.send(ctx, models.Request{Type: models.MessageSnapshotRequest})
}

func (o *Observer) sessionSeconds(now time.Time) int {
	return int(now.Sub(o.startedAt) / time.Second)
}

// ObserveItem reports a transition to itemID. Repeating the current item
// and any transition during an active lockdown are ignored. It reports
// whether a view was sent.
func (o *Observer) ObserveItem(ctx context.Context, itemID string) (bool, error) {
	now := o.clock.Now()

	o.mu.Lock()
	if itemID == "" || itemID == o.lastItem || o.snap.LockState.Active(now) {
		o.mu.Unlock()
		return false, nil
	}
	o.lastItem = itemID
	if o.feedEnteredAt.IsZero() {
		o.feedEnteredAt = now
	}
	o.mu.Unlock()

	snap, err := o.send(ctx, models.Request{
		Type:    models.MessageViewRecorded,
		ItemID:  itemID,
		Seconds: o.sessionSeconds(now),
	})
	if err != nil {
		return true, err
	}

	if models.IsLateNight(now) && !models.HasAchievement(snap.Achievements, models.AchievementZombie) {
		if _, err := o.send(ctx, models.Request{Type: models.MessageLateNightUnlock}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// LeaveFeed marks that the page left the item feed. Leaving within the
// quick-escape window of entering unlocks the quick escape achievement.
func (o *Observer) LeaveFeed(ctx context.Context) error {
	now := o.clock.Now()

	o.mu.Lock()
	entered := o.feedEnteredAt
	o.feedEnteredAt = time.Time{}
	o.lastItem = ""
	unlocked := models.HasAchievement(o.snap.Achievements, models.AchievementQuickEscape)
	o.mu.Unlock()

	if entered.IsZero() || unlocked || now.Sub(entered) >= models.QuickEscapeWindow {
		return nil
	}
	_, err := o.send(ctx, models.Request{Type: models.MessageQuickExitUnlock})
	return err
}

// ReportElapsed raises the authority's watched-seconds mark to the length
// of this session.
func (o *Observer) ReportElapsed(ctx context.Context) (models.Snapshot, error) {
	return o.send(ctx, models.Request{
		Type:    models.MessageElapsedSeconds,
		Seconds: o.sessionSeconds(o.clock.Now()),
	})
}

// Lockdown returns the seconds left on the persisted lock, derived from its
// absolute deadline, and whether it is still running.
func (o *Observer) Lockdown(now time.Time) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	remaining := o.snap.LockState.Remaining(now)
	return remaining, remaining > 0
}

// Tick reports lockdown_endured once for each lock whose countdown reached
// zero and reports whether it did.
func (o *Observer) Tick(ctx context.Context) (bool, error) {
	now := o.clock.Now()

	o.mu.Lock()
	lock := o.snap.LockState
	if lock == nil || lock.Active(now) || lock.Until == o.enduredUntil {
		o.mu.Unlock()
		return false, nil
	}
	o.enduredUntil = lock.Until
	o.mu.Unlock()

	_, err := o.send(ctx, models.Request{Type: models.MessageLockdownEndured})
	return true, err
}

// Merge folds one change notification into the cached snapshot field by
// field.
func (o *Observer) Merge(change models.Change) {
	now := o.clock.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	switch change.Entity {
	case models.EntityAchievements:
		if change.Removed {
			return
		}
		o.snap.Achievements = models.UnionAchievements(o.snap.Achievements, models.DecodeAchievements(change.Value))
	case models.EntityDay:
		if change.Removed || change.Date != models.FormatDate(now) {
			return
		}
		day := models.DecodeDay(change.Value)
		if change.Date != o.todayDate {
			// first record of a new day replaces yesterday's counters
			o.snap.Today = day
			o.todayDate = change.Date
			return
		}
		o.snap.Today.ViewCount = max(o.snap.Today.ViewCount, day.ViewCount)
		o.snap.Today.WatchedSeconds = max(o.snap.Today.WatchedSeconds, day.WatchedSeconds)
	case models.EntityEvolution:
		if change.Removed {
			return
		}
		o.snap.Evolution = models.DecodeEvolution(change.Value)
	case models.EntityLockState:
		var incoming *models.LockState
		if !change.Removed {
			incoming = models.DecodeLockState(change.Value)
		}
		if incoming == nil {
			if !o.snap.LockState.Active(now) {
				o.snap.LockState = nil
			}
			return
		}
		if o.snap.LockState == nil || incoming.Until > o.snap.LockState.Until {
			o.snap.LockState = incoming
		}
	}
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	out := s
	out.Achievements = slices.Clone(s.Achievements)
	if out.Achievements == nil {
		out.Achievements = []models.AchievementID{}
	}
	out.NewAchievements = slices.Clone(s.NewAchievements)
	if s.LockState != nil {
		lock := *s.LockState
		out.LockState = &lock
	}
	if s.Evolved != nil {
		evolved := *s.Evolved
		out.Evolved = &evolved
	}
	return out
}
