package services

import (
	"context"

	"worktrack/internal/clock"
	"worktrack/internal/events"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/types"
)

// SnapshotStore is the slice of storage.Store the services need. Update
// commits fn's changes only when fn and the write both succeed.
type SnapshotStore interface {
	Load(ctx context.Context) (*types.Snapshot, error)
	Update(ctx context.Context, fn func(*types.Snapshot) error) (*types.Snapshot, error)
	Settings(ctx context.Context) (types.Settings, error)
}

// Deps are the collaborators shared by the services
type Deps struct {
	Clock     clock.Clock
	Publisher events.Publisher
	Logger    logging.Logger
	Metrics   *metrics.Recorder
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.NewDefaultLogger()
	}
	return d
}

func (d Deps) publish(ev events.Event) {
	if d.Publisher != nil {
		d.Publisher.Publish(ev)
	}
}
