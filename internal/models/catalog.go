package models

import "time"

const (
	// SchemaVersion is the layout the migration routine upgrades stores to.
	SchemaVersion = 2

	DailyGoodThreshold   = 10
	IronWillThreshold    = 3
	DefaultRetentionDays = 90
	MaxLevel             = 5

	QuickEscapeWindow = 5 * time.Second
	LateNightFromHour = 2
	LateNightToHour   = 5
)

// BingeDevolveCounts are the exact daily view counts that cost two streak days.
var BingeDevolveCounts = [...]int{30, 60}

type EvolutionInfo struct {
	Level     int    `json:"level"`
	MinStreak int    `json:"minStreak"`
	Emoji     string `json:"emoji"`
	Name      string `json:"name"`
	Next      string `json:"next"`
}

var EvolutionLadder = [...]EvolutionInfo{
	{Level: 0, MinStreak: 0, Emoji: "🥚", Name: "Egg", Next: "One day under 10 views hatches the larva"},
	{Level: 1, MinStreak: 1, Emoji: "🐛", Name: "Larva", Next: "3 days in a row under 10 views grows a lizard"},
	{Level: 2, MinStreak: 3, Emoji: "🦎", Name: "Lizard", Next: "7 days in a row under 10 views grows an octopus"},
	{Level: 3, MinStreak: 7, Emoji: "🐙", Name: "Octopus", Next: "14 days in a row under 10 views grows a dragon"},
	{Level: 4, MinStreak: 14, Emoji: "🐉", Name: "Dragon", Next: "30 days in a row under 10 views crowns the king"},
	{Level: 5, MinStreak: 30, Emoji: "👑", Name: "Parasite King", Next: "Final form reached"},
}

// CalculateLevel is the only source of an evolution level.
func CalculateLevel(streak int) int {
	for i := len(EvolutionLadder) - 1; i > 0; i-- {
		if streak >= EvolutionLadder[i].MinStreak {
			return EvolutionLadder[i].Level
		}
	}
	return 0
}

type AchievementID string

const (
	AchievementFirstBlood     AchievementID = "first_blood"
	AchievementAlgorithmSlave AchievementID = "algorithm_slave"
	AchievementZombie         AchievementID = "zombie"
	AchievementIronWill       AchievementID = "iron_will"
	AchievementCentury        AchievementID = "century"
	AchievementQuickEscape    AchievementID = "quick_escape"
	AchievementEvolved        AchievementID = "evolved"
	AchievementDragon         AchievementID = "dragon"
	AchievementKing           AchievementID = "king"
)

type AchievementKind string

const (
	KindCount     AchievementKind = "count"
	KindEvolution AchievementKind = "evolution"
	KindLockdown  AchievementKind = "lockdown"
	KindNamed     AchievementKind = "named"
)

type AchievementInfo struct {
	ID          AchievementID   `json:"id"`
	Kind        AchievementKind `json:"kind"`
	Threshold   int             `json:"threshold,omitempty"`
	Emoji       string          `json:"emoji"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

// Achievements lists every achievement in predicate evaluation order:
// count-based, then evolution-based, then lockdown-based. Named
// achievements are only unlocked on request.
var Achievements = [...]AchievementInfo{
	{ID: AchievementFirstBlood, Kind: KindCount, Threshold: 1, Emoji: "🩸", Title: "First Infection", Description: "The first short watched with the parasite"},
	{ID: AchievementAlgorithmSlave, Kind: KindCount, Threshold: 50, Emoji: "⛓️", Title: "Slave to the Algorithm", Description: "50 shorts in one day"},
	{ID: AchievementCentury, Kind: KindCount, Threshold: 100, Emoji: "💀", Title: "Century", Description: "100 shorts in one day. Legendary."},
	{ID: AchievementEvolved, Kind: KindEvolution, Threshold: 1, Emoji: "🦎", Title: "Evolution Begins", Description: "The parasite grew past the egg"},
	{ID: AchievementDragon, Kind: KindEvolution, Threshold: 4, Emoji: "🐉", Title: "Dragon", Description: "14 days in a row under 10 views"},
	{ID: AchievementKing, Kind: KindEvolution, Threshold: 5, Emoji: "👑", Title: "Parasite King", Description: "30 days in a row under 10 views"},
	{ID: AchievementIronWill, Kind: KindLockdown, Threshold: IronWillThreshold, Emoji: "🪨", Title: "Iron Will", Description: "Sat through 3 full lockdowns"},
	{ID: AchievementQuickEscape, Kind: KindNamed, Emoji: "🏃", Title: "Algorithm Traitor", Description: "Left shorts within 5 seconds of entering"},
	{ID: AchievementZombie, Kind: KindNamed, Emoji: "🧟", Title: "Dawn Zombie", Description: "Watched shorts between 2 and 5 AM"},
}

func LookupAchievement(id AchievementID) (AchievementInfo, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return AchievementInfo{}, false
}

// IsNamedAchievement reports whether id can only be unlocked by request.
func IsNamedAchievement(id AchievementID) bool {
	a, ok := LookupAchievement(id)
	return ok && a.Kind == KindNamed
}

// IsLateNight reports whether t falls in the zombie window [02:00, 05:00).
func IsLateNight(t time.Time) bool {
	h := t.Hour()
	return h >= LateNightFromHour && h < LateNightToHour
}

type LockdownRung struct {
	At      int    `json:"at"`
	Seconds int    `json:"seconds"`
	Message string `json:"message"`
}

var LockdownSchedule = [...]LockdownRung{
	{At: 10, Seconds: 30, Message: "10 shorts. 30 second pause.\nThe algorithm is testing you."},
	{At: 20, Seconds: 60, Message: "20 shorts. 1 minute pause.\nThis is not a habit anymore, it is a hook."},
	{At: 30, Seconds: 120, Message: "30 shorts. 2 minute pause.\nThink of something else you could do right now."},
	{At: 40, Seconds: 240, Message: "40 shorts. 4 minute pause.\nDo you actually want to watch this?"},
	{At: 50, Seconds: 480, Message: "50 shorts. 8 minute pause.\nBe honest. Can you stop?"},
	{At: 60, Seconds: 960, Message: "60 shorts. 16 minute pause.\nTurn off the screen and look out the window."},
	{At: 70, Seconds: 1920, Message: "70 shorts. 32 minute pause.\nRemember what you planned to do today?"},
	{At: 80, Seconds: 3840, Message: "80 shorts. 1 hour 4 minute pause.\nAt this point you are not the one choosing."},
	{At: 90, Seconds: 7680, Message: "90 shorts. 2 hour 8 minute pause.\nWhen this ends, go do something else."},
	{At: 100, Seconds: 15360, Message: "100 shorts. 4 hour 16 minute pause.\nThat is it for today. See you tomorrow."},
}

// LockdownFor returns the rung whose count equals viewCount exactly.
func LockdownFor(viewCount int) (LockdownRung, bool) {
	for _, r := range LockdownSchedule {
		if r.At == viewCount {
			return r, true
		}
	}
	return LockdownRung{}, false
}

// IsBingeDevolveCount uses exact equality; a count that skips past a
// threshold does not trigger.
func IsBingeDevolveCount(viewCount int) bool {
	for _, c := range BingeDevolveCounts {
		if c == viewCount {
			return true
		}
	}
	return false
}

// Catalog is the read-only view of the constant tables served to observers.
type Catalog struct {
	SchemaVersion      int               `json:"schemaVersion"`
	DailyGoodThreshold int               `json:"dailyGoodThreshold"`
	BingeDevolveCounts []int             `json:"bingeDevolveCounts"`
	Evolution          []EvolutionInfo   `json:"evolution"`
	Achievements       []AchievementInfo `json:"achievements"`
	LockdownSchedule   []LockdownRung    `json:"lockdownSchedule"`
}

// NewCatalog copies the tables so callers cannot alter the originals.
func NewCatalog() Catalog {
	return Catalog{
		SchemaVersion:      SchemaVersion,
		DailyGoodThreshold: DailyGoodThreshold,
		BingeDevolveCounts: append([]int(nil), BingeDevolveCounts[:]...),
		Evolution:          append([]EvolutionInfo(nil), EvolutionLadder[:]...),
		Achievements:       append([]AchievementInfo(nil), Achievements[:]...),
		LockdownSchedule:   append([]LockdownRung(nil), LockdownSchedule[:]...),
	}
}
