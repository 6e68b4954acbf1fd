package services

import (
	"context"
	"fmt"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/storage"
	"sort"
	"time"
)

const MaxHistoryDays = models.DefaultRetentionDays

var nullValue = []byte("null")

type StateAuthorityInterface interface {
	RecordView(ctx context.Context, itemID string, observedSeconds int) (models.Snapshot, error)
	EnduredLockdown(ctx context.Context) (models.Snapshot, error)
	UnlockNamed(ctx context.Context, id models.AchievementID) (models.Snapshot, error)
	RecordElapsedSeconds(ctx context.Context, seconds int) (models.Snapshot, error)
	GetSnapshot(ctx context.Context) (models.Snapshot, error)
	History(ctx context.Context, days int) ([]models.DayHistory, error)
	CheckDailyStreak(ctx context.Context) error
	MigrateSchema(ctx context.Context) error
	CleanupOldData(ctx context.Context, maxDays int) (int, error)
	SweepExpiredLock(ctx context.Context) (bool, error)
}

// StateAuthority owns every mutation of the persisted state. All operations,
// reads included, run on the mutation queue as one read-modify-write with a
// single multi-key Set.
type StateAuthority struct {
	store   storage.StoreInterface
	queue   MutationQueueInterface
	clock   ClockInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewStateAuthority(store storage.StoreInterface, queue MutationQueueInterface, clock ClockInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) StateAuthorityInterface {
	return &StateAuthority{
		store:   store,
		queue:   queue,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

func (a *StateAuthority) storeErr(op string, err error) error {
	a.metrics.IncStoreErrors(op)
	a.logger.Errorf(providers.TypeStore, "Store %s failed: %s", op, err)
	return fmt.Errorf("store %s: %w", op, err)
}

func (a *StateAuthority) load(ctx context.Context, now time.Time) (models.State, error) {
	dayKey := models.DateKey(now)
	raw, err := a.store.Get(ctx, models.StateKeys(dayKey))
	if err != nil {
		return models.State{}, a.storeErr("get", err)
	}
	return models.DecodeState(raw, dayKey), nil
}

func (a *StateAuthority) save(ctx context.Context, entries map[string][]byte) error {
	if err := a.store.Set(ctx, entries); err != nil {
		return a.storeErr("set", err)
	}
	return nil
}

func encodeEntries(values map[string]interface{}) (map[string][]byte, error) {
	entries := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := models.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		entries[k] = data
	}
	return entries, nil
}

func (a *StateAuthority) RecordView(ctx context.Context, itemID string, observedSeconds int) (models.Snapshot, error) {
	if itemID == "" {
		return models.Snapshot{}, fmt.Errorf("%w: item id is required", models.ErrInvalidArgument)
	}
	if observedSeconds < 0 {
		return models.Snapshot{}, fmt.Errorf("%w: seconds must not be negative", models.ErrInvalidArgument)
	}
	return Enqueue(ctx, a.queue, "record_view", func(ctx context.Context) (models.Snapshot, error) {
		now := a.clock.Now()
		st, err := a.load(ctx, now)
		if err != nil {
			return models.Snapshot{}, err
		}

		st.Today.ViewCount++
		if observedSeconds > st.Today.WatchedSeconds {
			st.Today.WatchedSeconds = observedSeconds
		}
		count := st.Today.ViewCount
		values := map[string]interface{}{models.DateKey(now): st.Today}

		// Predicates see the level as it was before a binge devolve.
		newly := a.unlockEarned(&st, count)
		if len(newly) > 0 {
			values[models.KeyAchievements] = st.Achievements
		}

		var evolved *models.EvolutionTransition
		if models.IsBingeDevolveCount(count) {
			from := st.Evolution.Level
			st.Evolution.Streak = max(0, st.Evolution.Streak-2)
			st.Evolution.Level = models.CalculateLevel(st.Evolution.Streak)
			values[models.KeyEvolution] = st.Evolution
			if st.Evolution.Level != from {
				evolved = &models.EvolutionTransition{From: from, To: st.Evolution.Level}
			}
		}

		rung, opened := models.LockdownFor(count)
		if opened {
			st.LockState = models.NewLockState(rung, now)
			values[models.KeyLockState] = st.LockState
		}

		entries, err := encodeEntries(values)
		if err != nil {
			return models.Snapshot{}, err
		}
		if err := a.save(ctx, entries); err != nil {
			return models.Snapshot{}, err
		}

		for _, id := range newly {
			a.metrics.IncAchievementsUnlocked(string(id))
		}
		if evolved != nil {
			a.metrics.IncEvolutionChanges("down")
		}
		if opened {
			a.metrics.IncLockdownsOpened(rung.At)
			a.logger.Infof(providers.TypeQueue, "Lockdown opened at %d views for %ds", rung.At, rung.Seconds)
		}

		snap := st.Snapshot(now)
		snap.NewAchievements = newly
		snap.Evolved = evolved
		return snap, nil
	})
}

// unlockEarned evaluates the threshold achievements in catalog order and
// adds the earned ones to st.
func (a *StateAuthority) unlockEarned(st *models.State, count int) []models.AchievementID {
	var newly []models.AchievementID
	for _, ach := range models.Achievements {
		var value int
		switch ach.Kind {
		case models.KindCount:
			value = count
		case models.KindEvolution:
			value = st.Evolution.Level
		case models.KindLockdown:
			value = st.LockdownsEndured
		default:
			continue
		}
		if value < ach.Threshold {
			continue
		}
		var added bool
		st.Achievements, added = models.AddAchievement(st.Achievements, ach.ID)
		if added {
			newly = append(newly, ach.ID)
		}
	}
	return newly
}

func (a *StateAuthority) EnduredLockdown(ctx context.Context) (models.Snapshot, error) {
	return Enqueue(ctx, a.queue, "lockdown_endured", func(ctx context.Context) (models.Snapshot, error) {
		now := a.clock.Now()
		st, err := a.load(ctx, now)
		if err != nil {
			return models.Snapshot{}, err
		}

		st.LockdownsEndured++
		var newly []models.AchievementID
		if st.LockdownsEndured >= models.IronWillThreshold {
			var added bool
			st.Achievements, added = models.AddAchievement(st.Achievements, models.AchievementIronWill)
			if added {
				newly = append(newly, models.AchievementIronWill)
			}
		}
		st.LockState = nil

		values := map[string]interface{}{
			models.KeyLockdownsEndured: st.LockdownsEndured,
		}
		if len(newly) > 0 {
			values[models.KeyAchievements] = st.Achievements
		}
		entries, err := encodeEntries(values)
		if err != nil {
			return models.Snapshot{}, err
		}
		entries[models.KeyLockState] = nullValue
		if err := a.save(ctx, entries); err != nil {
			return models.Snapshot{}, err
		}

		for _, id := range newly {
			a.metrics.IncAchievementsUnlocked(string(id))
		}
		snap := st.Snapshot(now)
		snap.NewAchievements = newly
		return snap, nil
	})
}

func (a *StateAuthority) UnlockNamed(ctx context.Context, id models.AchievementID) (models.Snapshot, error) {
	if _, known := models.LookupAchievement(id); !known {
		return models.Snapshot{}, fmt.Errorf("%w: %q", models.ErrUnknownAchievement, id)
	}
	if !models.IsNamedAchievement(id) {
		return models.Snapshot{}, fmt.Errorf("%w: %q", models.ErrNotNamedAchievement, id)
	}
	return Enqueue(ctx, a.queue, "unlock_"+string(id), func(ctx context.Context) (models.Snapshot, error) {
		now := a.clock.Now()
		st, err := a.load(ctx, now)
		if err != nil {
			return models.Snapshot{}, err
		}

		var added bool
		st.Achievements, added = models.AddAchievement(st.Achievements, id)
		snap := st.Snapshot(now)
		if !added {
			return snap, nil
		}

		entries, err := encodeEntries(map[string]interface{}{models.KeyAchievements: st.Achievements})
		if err != nil {
			return models.Snapshot{}, err
		}
		if err := a.save(ctx, entries); err != nil {
			return models.Snapshot{}, err
		}
		a.metrics.IncAchievementsUnlocked(string(id))
		snap.NewAchievements = []models.AchievementID{id}
		return snap, nil
	})
}

func (a *StateAuthority) RecordElapsedSeconds(ctx context.Context, seconds int) (models.Snapshot, error) {
	if seconds < 0 {
		return models.Snapshot{}, fmt.Errorf("%w: seconds must not be negative", models.ErrInvalidArgument)
	}
	return Enqueue(ctx, a.queue, "elapsed_seconds", func(ctx context.Context) (models.Snapshot, error) {
		now := a.clock.Now()
		st, err := a.load(ctx, now)
		if err != nil {
			return models.Snapshot{}, err
		}
		if seconds <= st.Today.WatchedSeconds {
			return st.Snapshot(now), nil
		}

		st.Today.WatchedSeconds = seconds
		entries, err := encodeEntries(map[string]interface{}{models.DateKey(now): st.Today})
		if err != nil {
			return models.Snapshot{}, err
		}
		if err := a.save(ctx, entries); err != nil {
			return models.Snapshot{}, err
		}
		return st.Snapshot(now), nil
	})
}

func (a *StateAuthority) GetSnapshot(ctx context.Context) (models.Snapshot, error) {
	return Enqueue(ctx, a.queue, "snapshot", func(ctx context.Context) (models.Snapshot, error) {
		now := a.clock.Now()
		st, err := a.load(ctx, now)
		if err != nil {
			return models.Snapshot{}, err
		}
		return st.Snapshot(now), nil
	})
}

// History returns the daily records of the last days days, oldest first,
// with missing days reported as zero.
func (a *StateAuthority) History(ctx context.Context, days int) ([]models.DayHistory, error) {
	if days < 1 || days > MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", models.ErrInvalidArgument, MaxHistoryDays)
	}
	return Enqueue(ctx, a.queue, "history", func(ctx context.Context) ([]models.DayHistory, error) {
		now := a.clock.Now()
		dates := make([]time.Time, days)
		keys := make([]string, days)
		for i := 0; i < days; i++ {
			dates[i] = now.AddDate(0, 0, i-days+1)
			keys[i] = models.DateKey(dates[i])
		}
		raw, err := a.store.Get(ctx, keys)
		if err != nil {
			return nil, a.storeErr("get", err)
		}
		out := make([]models.DayHistory, days)
		for i, d := range dates {
			day := models.DecodeDay(raw[keys[i]])
			out[i] = models.DayHistory{
				Date:           models.FormatDate(d),
				ViewCount:      day.ViewCount,
				WatchedSeconds: day.WatchedSeconds,
			}
		}
		return out, nil
	})
}

// CheckDailyStreak advances the streak from yesterday's record at most once
// per calendar day. A missing record for yesterday leaves the streak as is.
func (a *StateAuthority) CheckDailyStreak(ctx context.Context) error {
	return a.queue.Do(ctx, "streak_check", func(ctx context.Context) error {
		now := a.clock.Now()
		today := models.FormatDate(now)
		yesterdayKey := models.DateKey(now.AddDate(0, 0, -1))

		raw, err := a.store.Get(ctx, []string{models.KeyStreakCheckedDate, models.KeyEvolution, yesterdayKey})
		if err != nil {
			return a.storeErr("get", err)
		}
		if models.DecodeString(raw[models.KeyStreakCheckedDate]) == today {
			return nil
		}

		evo := models.DecodeEvolution(raw[models.KeyEvolution])
		from := evo.Level
		if yesterday, ok := raw[yesterdayKey]; ok {
			if models.DecodeDay(yesterday).ViewCount < models.DailyGoodThreshold {
				evo.Streak++
			} else {
				evo.Streak = 0
			}
		}
		evo.Level = models.CalculateLevel(evo.Streak)

		entries, err := encodeEntries(map[string]interface{}{
			models.KeyEvolution:         evo,
			models.KeyStreakCheckedDate: today,
		})
		if err != nil {
			return err
		}
		if err := a.save(ctx, entries); err != nil {
			return err
		}

		switch {
		case evo.Level > from:
			a.metrics.IncEvolutionChanges("up")
		case evo.Level < from:
			a.metrics.IncEvolutionChanges("down")
		}
		a.logger.Infof(providers.TypeQueue, "Streak checked for %s: streak=%d level=%d", today, evo.Streak, evo.Level)
		return nil
	})
}

// MigrateSchema upgrades the stored layout to models.SchemaVersion. Running
// it on an up-to-date store changes nothing.
func (a *StateAuthority) MigrateSchema(ctx context.Context) error {
	return a.queue.Do(ctx, "migrate", func(ctx context.Context) error {
		raw, err := a.store.Get(ctx, []string{models.KeySchemaVersion})
		if err != nil {
			return a.storeErr("get", err)
		}
		version := models.DecodeInt(raw[models.KeySchemaVersion])
		if version >= models.SchemaVersion {
			return nil
		}

		all, err := a.store.GetAll(ctx)
		if err != nil {
			return a.storeErr("get_all", err)
		}
		entries := make(map[string][]byte)
		var remove []string

		if version < 1 {
			if checked, ok := all[models.KeyStreakCheckedDate]; ok && !models.IsValidDate(models.DecodeString(checked)) {
				remove = append(remove, models.KeyStreakCheckedDate)
			}
		}
		if version < 2 {
			for key, value := range all {
				if !models.IsDayKey(key) || models.IsCanonicalDay(value) {
					continue
				}
				data, err := models.Encode(models.DecodeDay(value))
				if err != nil {
					return err
				}
				entries[key] = data
			}
			if value, ok := all[models.KeyEvolution]; ok {
				evo := models.DecodeEvolution(value)
				if fixed := models.CalculateLevel(evo.Streak); fixed != evo.Level {
					evo.Level = fixed
					data, err := models.Encode(evo)
					if err != nil {
						return err
					}
					entries[models.KeyEvolution] = data
				}
			}
		}

		if len(remove) > 0 {
			if err := a.store.Remove(ctx, remove); err != nil {
				return a.storeErr("remove", err)
			}
		}
		entries[models.KeySchemaVersion], _ = models.Encode(models.SchemaVersion)
		if err := a.save(ctx, entries); err != nil {
			return err
		}
		a.logger.Infof(providers.TypeStore, "Schema migrated from v%d to v%d (%d keys rewritten, %d removed)",
			version, models.SchemaVersion, len(entries)-1, len(remove))
		return nil
	})
}

// CleanupOldData removes daily records older than maxDays days and returns
// how many were removed.
func (a *StateAuthority) CleanupOldData(ctx context.Context, maxDays int) (int, error) {
	if maxDays < 1 {
		return 0, fmt.Errorf("%w: maxDays must be positive", models.ErrInvalidArgument)
	}
	return Enqueue(ctx, a.queue, "cleanup", func(ctx context.Context) (int, error) {
		cutoff := models.DateKey(a.clock.Now().AddDate(0, 0, -maxDays))
		all, err := a.store.GetAll(ctx)
		if err != nil {
			return 0, a.storeErr("get_all", err)
		}
		var stale []string
		for key := range all {
			if models.IsDayKey(key) && key < cutoff {
				stale = append(stale, key)
			}
		}
		if len(stale) == 0 {
			return 0, nil
		}
		sort.Strings(stale)
		if err := a.store.Remove(ctx, stale); err != nil {
			return 0, a.storeErr("remove", err)
		}
		a.logger.Infof(providers.TypeStore, "Removed %d daily records older than %s", len(stale), cutoff)
		return len(stale), nil
	})
}

// SweepExpiredLock clears a persisted lock whose deadline passed without an
// observer reporting it. The endured counter is left alone.
func (a *StateAuthority) SweepExpiredLock(ctx context.Context) (bool, error) {
	return Enqueue(ctx, a.queue, "sweep_lock", func(ctx context.Context) (bool, error) {
		raw, err := a.store.Get(ctx, []string{models.KeyLockState})
		if err != nil {
			return false, a.storeErr("get", err)
		}
		lock := models.DecodeLockState(raw[models.KeyLockState])
		if lock == nil || lock.Active(a.clock.Now()) {
			return false, nil
		}
		if err := a.save(ctx, map[string][]byte{models.KeyLockState: nullValue}); err != nil {
			return false, err
		}
		return true, nil
	})
}
