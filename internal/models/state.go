package models

import (
	"slices"
	"time"
)

type DayUsage struct {
	ViewCount      int `json:"viewCount"`
	WatchedSeconds int `json:"watchedSeconds"`
}

type Evolution struct {
	Level  int `json:"level"`
	Streak int `json:"streak"`
}

// LockState is persisted with an absolute deadline so a restart cannot
// shorten or extend a lockdown.
type LockState struct {
	Until        int64  `json:"until"`
	Message      string `json:"message"`
	TotalSeconds int    `json:"totalSeconds"`
}

func NewLockState(rung LockdownRung, now time.Time) *LockState {
	return &LockState{
		Until:        now.Add(time.Duration(rung.Seconds) * time.Second).UnixMilli(),
		Message:      rung.Message,
		TotalSeconds: rung.Seconds,
	}
}

func (l *LockState) Active(now time.Time) bool {
	return l != nil && l.Until > now.UnixMilli()
}

// Remaining rounds up to whole seconds and never goes below zero.
func (l *LockState) Remaining(now time.Time) int {
	if !l.Active(now) {
		return 0
	}
	ms := l.Until - now.UnixMilli()
	return int((ms + 999) / 1000)
}

type EvolutionTransition struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Snapshot is the projection sent to observers after every operation.
type Snapshot struct {
	Today           DayUsage             `json:"today"`
	Evolution       Evolution            `json:"evolution"`
	Achievements    []AchievementID      `json:"achievements"`
	LockState       *LockState           `json:"lockState"`
	NewAchievements []AchievementID      `json:"newAchievements,omitempty"`
	Evolved         *EvolutionTransition `json:"evolved,omitempty"`
}

// DefaultSnapshot is what an observer shows before it ever heard from the
// authority.
func DefaultSnapshot() Snapshot {
	return Snapshot{Achievements: []AchievementID{}}
}

type DayHistory struct {
	Date           string `json:"date"`
	ViewCount      int    `json:"viewCount"`
	WatchedSeconds int    `json:"watchedSeconds"`
}

// State is the decoded form of everything the authority keeps in the store
// for one operation.
type State struct {
	Today             DayUsage
	Evolution         Evolution
	Achievements      []AchievementID
	LockState         *LockState
	LockdownsEndured  int
	SchemaVersion     int
	StreakCheckedDate string
}

// Snapshot masks an expired lock as absent.
func (s *State) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Today:        s.Today,
		Evolution:    s.Evolution,
		Achievements: slices.Clone(s.Achievements),
	}
	if snap.Achievements == nil {
		snap.Achievements = []AchievementID{}
	}
	if s.LockState.Active(now) {
		lock := *s.LockState
		snap.LockState = &lock
	}
	return snap
}

func HasAchievement(set []AchievementID, id AchievementID) bool {
	return slices.Contains(set, id)
}

// AddAchievement appends id unless present and reports whether it was added.
func AddAchievement(set []AchievementID, id AchievementID) ([]AchievementID, bool) {
	if HasAchievement(set, id) {
		return set, false
	}
	return append(set, id), true
}

// UnionAchievements keeps the order of a and appends what only b has.
func UnionAchievements(a, b []AchievementID) []AchievementID {
	out := slices.Clone(a)
	for _, id := range b {
		out, _ = AddAchievement(out, id)
	}
	return out
}
