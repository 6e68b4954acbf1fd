package maintenance

import (
	"context"
	"errors"
	"fmt"
	"github.com/roylee0704/gron"
	"go.uber.org/atomic"
	"parasited/internal/maintenance/interfaces"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/structures"
	"sync"
	"time"
)

// Scheduler runs the startup sequence and the periodic upkeep of the store:
// streak advance, retention cleanup, expired-lock sweep and, for buffering
// stores, snapshot persistence.
type Scheduler struct {
	config        *structures.Config
	logger        providers.Logger
	authority     services.StateAuthorityInterface
	persister     storage.PersisterInterface
	metrics       providers.MetricsProviderInterface
	cron          *gron.Cron
	opsMu         sync.Mutex
	retentionDays *atomic.Int64
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	if s.config.Storage.Driver == "file" {
		s.cron.AddFunc(gron.Every(s.config.Storage.SaveInterval), func() {
			if err := s.Persist(); err != nil {
				return
			}
			s.logger.Debugf(providers.TypeApp, "Persisted store to file %s", s.config.Storage.FilePath)
		})
	}

	s.cron.AddFunc(gron.Every(s.config.Retention.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.RunMaintenance(ctx)
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Startup migrates the schema, then runs one maintenance pass. Every step
// is attempted even when an earlier one fails.
func (s *Scheduler) Startup(ctx context.Context) error {
	var errs []error
	if err := s.authority.MigrateSchema(ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Schema migration failed: %s", err)
		errs = append(errs, fmt.Errorf("migrate: %w", err))
	}
	errs = append(errs, s.maintain(ctx)...)
	return errors.Join(errs...)
}

func (s *Scheduler) RunMaintenance(ctx context.Context) {
	_ = s.maintain(ctx)
}

func (s *Scheduler) maintain(ctx context.Context) []error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	var errs []error
	if err := s.authority.CheckDailyStreak(ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Daily streak check failed: %s", err)
		errs = append(errs, fmt.Errorf("streak: %w", err))
	}

	days := int(s.retentionDays.Load())
	removed, err := s.authority.CleanupOldData(ctx, days)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Retention cleanup failed: %s", err)
		errs = append(errs, fmt.Errorf("cleanup: %w", err))
	} else if removed > 0 {
		s.logger.Infof(providers.TypeApp, "Retention cleanup removed %d daily records (keeping %d days)", removed, days)
	}

	swept, err := s.authority.SweepExpiredLock(ctx)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Lock sweep failed: %s", err)
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	} else if swept {
		s.logger.Infof(providers.TypeApp, "Cleared an expired lockdown")
	}
	return errs
}

func (s *Scheduler) Persist() error {
	if s.persister == nil {
		return nil
	}
	start := time.Now()
	err := s.persister.Persist()
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}

// SetRetentionDays applies a reloaded retention setting to later passes.
func (s *Scheduler) SetRetentionDays(days int) {
	if days < 1 {
		return
	}
	s.retentionDays.Store(int64(days))
}

func NewScheduler(config *structures.Config, logger providers.Logger, authority services.StateAuthorityInterface, persister storage.PersisterInterface, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	days := config.Retention.Days
	if days < 1 {
		days = models.DefaultRetentionDays
	}
	return &Scheduler{
		config:        config,
		logger:        logger,
		authority:     authority,
		persister:     persister,
		metrics:       metrics,
		retentionDays: atomic.NewInt64(int64(days)),
	}
}
