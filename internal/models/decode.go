package models

import (
	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// decodeAny returns nil for absent, empty or malformed values.
func decodeAny(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// DecodeDay accepts the canonical shape and the legacy {shorts, seconds} one.
func DecodeDay(raw []byte) DayUsage {
	m, ok := decodeAny(raw).(map[string]interface{})
	if !ok {
		return DayUsage{}
	}
	day := DayUsage{
		ViewCount:      cast.ToInt(m["viewCount"]),
		WatchedSeconds: cast.ToInt(m["watchedSeconds"]),
	}
	if _, found := m["viewCount"]; !found {
		day.ViewCount = cast.ToInt(m["shorts"])
	}
	if _, found := m["watchedSeconds"]; !found {
		day.WatchedSeconds = cast.ToInt(m["seconds"])
	}
	day.ViewCount = nonNegative(day.ViewCount)
	day.WatchedSeconds = nonNegative(day.WatchedSeconds)
	return day
}

// IsCanonicalDay reports whether raw is already stored in the current shape.
func IsCanonicalDay(raw []byte) bool {
	m, ok := decodeAny(raw).(map[string]interface{})
	if !ok || len(m) != 2 {
		return false
	}
	_, hasCount := m["viewCount"].(float64)
	_, hasSeconds := m["watchedSeconds"].(float64)
	return hasCount && hasSeconds
}

func DecodeEvolution(raw []byte) Evolution {
	m, ok := decodeAny(raw).(map[string]interface{})
	if !ok {
		return Evolution{}
	}
	evo := Evolution{
		Level:  cast.ToInt(m["level"]),
		Streak: nonNegative(cast.ToInt(m["streak"])),
	}
	if evo.Level < 0 || evo.Level > MaxLevel {
		evo.Level = CalculateLevel(evo.Streak)
	}
	return evo
}

// DecodeAchievements drops unknown ids and duplicates.
func DecodeAchievements(raw []byte) []AchievementID {
	list := cast.ToSlice(decodeAny(raw))
	out := make([]AchievementID, 0, len(list))
	for _, item := range list {
		id := AchievementID(cast.ToString(item))
		if _, known := LookupAchievement(id); !known {
			continue
		}
		out, _ = AddAchievement(out, id)
	}
	return out
}

func DecodeLockState(raw []byte) *LockState {
	m, ok := decodeAny(raw).(map[string]interface{})
	if !ok {
		return nil
	}
	lock := &LockState{
		Until:        cast.ToInt64(m["until"]),
		Message:      cast.ToString(m["message"]),
		TotalSeconds: nonNegative(cast.ToInt(m["totalSeconds"])),
	}
	if lock.Until <= 0 {
		return nil
	}
	return lock
}

func DecodeInt(raw []byte) int {
	return nonNegative(cast.ToInt(decodeAny(raw)))
}

func DecodeString(raw []byte) string {
	s, _ := decodeAny(raw).(string)
	return s
}

// DecodeState turns raw store values into typed entities, defaulting
// anything absent or malformed. dayKey selects the daily record reported as
// Today.
func DecodeState(raw map[string][]byte, dayKey string) State {
	return State{
		Today:             DecodeDay(raw[dayKey]),
		Evolution:         DecodeEvolution(raw[KeyEvolution]),
		Achievements:      DecodeAchievements(raw[KeyAchievements]),
		LockState:         DecodeLockState(raw[KeyLockState]),
		LockdownsEndured:  DecodeInt(raw[KeyLockdownsEndured]),
		SchemaVersion:     DecodeInt(raw[KeySchemaVersion]),
		StreakCheckedDate: DecodeString(raw[KeyStreakCheckedDate]),
	}
}

// StateKeys lists the keys DecodeState reads for the given day.
func StateKeys(dayKey string) []string {
	return []string{
		dayKey,
		KeyEvolution,
		KeyAchievements,
		KeyLockState,
		KeyLockdownsEndured,
		KeySchemaVersion,
		KeyStreakCheckedDate,
	}
}

// Encode marshals a store value. A nil *LockState encodes as null.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
