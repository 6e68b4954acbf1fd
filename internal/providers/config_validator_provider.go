package providers

import (
	"errors"
	"fmt"
	"github.com/gookit/validate"
	"parasited/internal/structures"
	"time"
)

type CnfValidatorInterface interface {
	Validate() error
}

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) CnfValidatorInterface {
	return &CnfValidator{conf: conf}
}

func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	if !v.Validate() {
		return v.Errors
	}
	return c.validateStorage()
}

// validateStorage checks the fields the selected driver depends on.
func (c *CnfValidator) validateStorage() error {
	s := c.conf.Storage
	switch s.Driver {
	case "file":
		if s.FilePath == "" {
			return errors.New("storage.filePath is required for the file driver")
		}
		if s.SaveInterval < time.Second {
			return fmt.Errorf("storage.saveInterval must be at least 1s, got %s", s.SaveInterval)
		}
	case "sqlite":
		if s.SqlitePath == "" {
			return errors.New("storage.sqlitePath is required for the sqlite driver")
		}
	case "postgres":
		if s.PostgresDSN == "" {
			return errors.New("storage.postgresDsn is required for the postgres driver")
		}
	case "badger":
		if s.BadgerDir == "" {
			return errors.New("storage.badgerDir is required for the badger driver")
		}
	case "redis":
		if s.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	}
	if c.conf.Clock.Timezone != "" {
		if _, err := time.LoadLocation(c.conf.Clock.Timezone); err != nil {
			return fmt.Errorf("clock.timezone: %w", err)
		}
	}
	return nil
}
