package models

import (
	"strings"
	"time"
)

const (
	DayKeyPrefix         = "p_day_"
	KeyEvolution         = "p_evolution"
	KeyAchievements      = "p_achievements"
	KeyLockState         = "p_lock_state"
	KeyLockdownsEndured  = "p_lockdowns_endured"
	KeySchemaVersion     = "p_schema_version"
	KeyStreakCheckedDate = "p_streak_checked_date"

	DateLayout = "2006-01-02"
)

// Entity names used in change notifications.
const (
	EntityDay               = "day"
	EntityEvolution         = "evolution"
	EntityAchievements      = "achievements"
	EntityLockState         = "lockState"
	EntityLockdownsEndured  = "lockdownsEndured"
	EntitySchemaVersion     = "schemaVersion"
	EntityStreakCheckedDate = "streakCheckedDate"
)

// FormatDate renders the zero-padded Y-M-D of t in t's own location. The
// result sorts lexically in calendar order.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func DateKey(t time.Time) string {
	return DayKeyPrefix + FormatDate(t)
}

func IsDayKey(key string) bool {
	return strings.HasPrefix(key, DayKeyPrefix)
}

// DateFromKey returns the date part of a day key.
func DateFromKey(key string) (string, bool) {
	if !IsDayKey(key) {
		return "", false
	}
	return strings.TrimPrefix(key, DayKeyPrefix), true
}

// IsValidDate reports whether s is a canonical YYYY-MM-DD date.
func IsValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// EntityForKey maps a store key to its change-notification entity name.
func EntityForKey(key string) string {
	switch key {
	case KeyEvolution:
		return EntityEvolution
	case KeyAchievements:
		return EntityAchievements
	case KeyLockState:
		return EntityLockState
	case KeyLockdownsEndured:
		return EntityLockdownsEndured
	case KeySchemaVersion:
		return EntitySchemaVersion
	case KeyStreakCheckedDate:
		return EntityStreakCheckedDate
	}
	if IsDayKey(key) {
		return EntityDay
	}
	return ""
}
