package interfaces

import "context"

type SchedulerInterface interface {
	Init()
	Stop()
	Startup(ctx context.Context) error
	RunMaintenance(ctx context.Context)
	Persist() error
	SetRetentionDays(days int)
}
