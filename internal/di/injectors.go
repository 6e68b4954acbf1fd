//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"parasited/internal"
	"parasited/internal/controllers"
	"parasited/internal/maintenance"
	"parasited/internal/providers"
	"parasited/internal/services"
	"parasited/internal/storage"
	"parasited/internal/structures"
)

var coreSet = wire.NewSet(
	providers.NewConfigProvider,
	providers.NewLogProvider,
	providers.NewMetricsProvider,

	storage.NewZstdCompressor,
	services.NewChangeHub,
	wire.Bind(new(storage.ChangePublisherInterface), new(services.ChangeHubInterface)),
	storage.NewObservedStore,
	wire.Bind(new(storage.StoreInterface), new(*storage.NotifyingStore)),
	services.NewClock,
	services.NewMutationQueue,
	services.NewStateAuthority,
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		coreSet,
		providers.NewInstrumentedCacheProvider,
		wire.Bind(new(storage.PersisterInterface), new(*storage.NotifyingStore)),
		wire.Bind(new(controllers.RevisionSourceInterface), new(*storage.NotifyingStore)),
		maintenance.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		controllers.NewChangesController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

func InitToolbox(cfg *structures.CliFlags) (*internal.Toolbox, error) {

	wire.Build(
		coreSet,
		internal.NewToolbox,
	)

	return nil, nil
}
