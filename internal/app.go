package internal

import (
	"context"
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"net/http"
	"parasited/internal/controllers"
	"parasited/internal/maintenance/interfaces"
	"parasited/internal/providers"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/structures"
	"strconv"
	"time"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	WebServer *http.Server
	conf      *structures.Config
	logger    providers.Logger
	scheduler interfaces.SchedulerInterface
	hub       services.ChangeHubInterface
	queue     services.MutationQueueInterface
	store     storage.StoreInterface
}

func NewApp(apiController *controllers.ApiController, healthController *controllers.HealthController, changesController *controllers.ChangesController, scheduler interfaces.SchedulerInterface, hub services.ChangeHubInterface, queue services.MutationQueueInterface, store storage.StoreInterface, conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) *App {
	// Inner mux: API routes and the change stream
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}
	apiMux.HandleFunc("/changes", changesController.Stream)

	// Wrap API routes with metrics middleware
	instrumentedAPI := providers.MetricsMiddleware(metrics, apiMux)

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	return &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		conf:      conf,
		logger:    logger,
		scheduler: scheduler,
		hub:       hub,
		queue:     queue,
		store:     store,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// in order: scheduler, subscribers, HTTP server, queue, final persist, store.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof(providers.TypeApp, "Starting %s", a.conf.AppName)
	if err := a.scheduler.Startup(ctx); err != nil {
		a.logger.Errorf(providers.TypeApp, "Startup maintenance incomplete: %s", err)
	}
	a.scheduler.Init()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Infof(providers.TypeApp, "Listening HTTP clients on %s", a.WebServer.Addr)
		if err := a.WebServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Infof(providers.TypeApp, "Shutdown signal received")
		return a.shutdown()
	})

	err := g.Wait()
	a.logger.Infof(providers.TypeApp, "gracefully stopped")
	return err
}

func (a *App) shutdown() error {
	a.scheduler.Stop()
	a.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.WebServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	a.queue.Close()
	if err := a.scheduler.Persist(); err != nil {
		a.logger.Errorf(providers.TypeApp, "Final persist failed: %s", err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) Logger() providers.Logger {
	return a.logger
}

// Reload applies the settings that can change without a restart.
func (a *App) Reload(conf *structures.Config) {
	if setter, ok := a.logger.(providers.LevelSetter); ok {
		if err := setter.SetLevel(conf.Logger.Level); err != nil {
			a.logger.Warnf(providers.TypeApp, "Ignoring log level %q: %s", conf.Logger.Level, err)
		}
	}
	a.scheduler.SetRetentionDays(conf.Retention.Days)
	a.logger.Infof(providers.TypeApp, "Applied log level %s and retention of %d days", conf.Logger.Level, conf.Retention.Days)
}

// Toolbox backs the one-shot commands that run maintenance without serving.
type Toolbox struct {
	Authority services.StateAuthorityInterface
	Logger    providers.Logger
	queue     services.MutationQueueInterface
	store     storage.StoreInterface
}

func NewToolbox(authority services.StateAuthorityInterface, queue services.MutationQueueInterface, store storage.StoreInterface, logger providers.Logger) *Toolbox {
	return &Toolbox{Authority: authority, Logger: logger, queue: queue, store: store}
}

// Close drains the queue and closes the store, which flushes buffered
// writes.
func (t *Toolbox) Close() error {
	t.queue.Close()
	err := t.store.Close()
	t.Logger.Close()
	return err
}
