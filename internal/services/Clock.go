package services

import (
	"fmt"
	"parasited/internal/structures"
	"time"
)

type ClockInterface interface {
	Now() time.Time
}

// SystemClock reports wall time in the configured zone, which decides where
// one day ends and the next begins.
type SystemClock struct {
	loc *time.Location
}

func NewClock(conf *structures.Config) (ClockInterface, error) {
	name := conf.Clock.Timezone
	if name == "" || name == "Local" {
		return &SystemClock{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &SystemClock{loc: loc}, nil
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}
