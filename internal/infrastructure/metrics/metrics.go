// Package metrics exposes prometheus counters for the timer engine and
// the persistence layer. A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "worktrack"

// Stop reasons used as the reason label on timer stops
const (
	ReasonManual = "manual"
	ReasonAuto   = "auto"
)

// Recorder holds the tracker's collectors
type Recorder struct {
	timerStarts    prometheus.Counter
	timerStops     *prometheus.CounterVec
	timerRunning   prometheus.Gauge
	mealBreaks     prometheus.Counter
	snapshotSaves  *prometheus.CounterVec
	cleanupDeleted *prometheus.CounterVec
}

// New registers the collectors on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		timerStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_starts_total",
			Help:      "Task timers started.",
		}),
		timerStops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_stops_total",
			Help:      "Task timers stopped, by manual or auto stop.",
		}, []string{"reason"}),
		timerRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timer_running",
			Help:      "1 while a task timer is running.",
		}),
		mealBreaks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meal_breaks_total",
			Help:      "Meal breaks started.",
		}),
		snapshotSaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_saves_total",
			Help:      "Snapshot writes to the blob store, by result.",
		}, []string{"result"}),
		cleanupDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Records removed by retention cleanup, by kind.",
		}, []string{"kind"}),
	}
}

// TimerStarted counts a start and marks the timer running
func (r *Recorder) TimerStarted() {
	if r == nil {
		return
	}
	r.timerStarts.Inc()
	r.timerRunning.Set(1)
}

// TimerStopped counts a stop with reason and clears the running gauge
func (r *Recorder) TimerStopped(reason string) {
	if r == nil {
		return
	}
	r.timerStops.WithLabelValues(reason).Inc()
	r.timerRunning.Set(0)
}

// TimerResumed marks a timer restored from storage as running
func (r *Recorder) TimerResumed() {
	if r == nil {
		return
	}
	r.timerRunning.Set(1)
}

// MealBreakStarted counts a meal break
func (r *Recorder) MealBreakStarted() {
	if r == nil {
		return
	}
	r.mealBreaks.Inc()
}

// SnapshotSaved counts a write attempt; err decides the result label
func (r *Recorder) SnapshotSaved(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.snapshotSaves.WithLabelValues(result).Inc()
}

// CleanupDeleted adds n removed records of kind
func (r *Recorder) CleanupDeleted(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cleanupDeleted.WithLabelValues(kind).Add(float64(n))
}
