package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Timer(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.TimerStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.timerStarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.timerRunning))

	r.TimerStopped(ReasonAuto)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.timerStops.WithLabelValues(ReasonAuto)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.timerStops.WithLabelValues(ReasonManual)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.timerRunning))

	r.TimerResumed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.timerRunning))
}

func TestRecorder_Storage(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.SnapshotSaved(nil)
	r.SnapshotSaved(nil)
	r.SnapshotSaved(errors.New("disk full"))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.snapshotSaves.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.snapshotSaves.WithLabelValues("error")))

	r.CleanupDeleted("timeEntries", 3)
	r.CleanupDeleted("timeEntries", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cleanupDeleted.WithLabelValues("timeEntries")))

	r.MealBreakStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mealBreaks))
}

func TestRecorder_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.TimerStarted()

	expected := `
# HELP worktrack_timer_starts_total Task timers started.
# TYPE worktrack_timer_starts_total counter
worktrack_timer_starts_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "worktrack_timer_starts_total"))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.TimerStarted()
		r.TimerStopped(ReasonManual)
		r.TimerResumed()
		r.MealBreakStarted()
		r.SnapshotSaved(nil)
		r.CleanupDeleted("mealBreaks", 1)
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
