package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"worktrack/internal/clock"
	"worktrack/internal/events"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/repository"
	"worktrack/internal/storage"
	"worktrack/internal/types"
)

type harness struct {
	clock    *clock.Manual
	blobs    *repository.MemoryStore
	store    *storage.Store
	events   *events.Recorder
	deps     Deps
	registry *TaskRegistry
	engine   *TimerEngine
	reports  *ReportAggregator
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewManual(start),
		blobs:  repository.NewMemoryStore(),
		events: &events.Recorder{},
	}
	bus := events.NewBus(logging.NewNop())
	bus.Subscribe(h.events.Handle)

	h.deps = Deps{
		Clock:     h.clock,
		Publisher: bus,
		Logger:    logging.NewNop(),
		Metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h.store = storage.New(h.blobs, storage.Options{Clock: h.clock, Publisher: bus, Logger: logging.NewNop()})
	h.registry = NewTaskRegistry(h.store, h.deps)
	h.engine = NewTimerEngine(h.store, h.deps)
	h.reports = NewReportAggregator(h.store, h.deps)
	require.NoError(t, h.engine.Init(context.Background()))
	t.Cleanup(h.engine.Close)
	return h
}

// restart simulates a process restart: a new engine over the same store
func (h *harness) restart(t *testing.T) *TimerEngine {
	t.Helper()
	h.engine.Close()
	h.engine = NewTimerEngine(h.store, h.deps)
	t.Cleanup(h.engine.Close)
	return h.engine
}

func (h *harness) task(t *testing.T, name string) types.Task {
	t.Helper()
	task, err := h.registry.CreateTask(context.Background(), name, "")
	require.NoError(t, err)
	return task
}

func (h *harness) snapshot(t *testing.T) *types.Snapshot {
	t.Helper()
	snap, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

// requireInvariants checks the snapshot-wide rules: at most one running
// entry, one active task, one open meal break, and consistent durations.
func (h *harness) requireInvariants(t *testing.T) {
	t.Helper()
	require.NoError(t, h.snapshot(t).Validate())
}

func monday930() time.Time {
	return time.Date(2023, 9, 25, 9, 30, 0, 0, time.Local)
}
