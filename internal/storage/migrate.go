package storage

import (
	"encoding/json"
	"strconv"
	"strings"

	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

// migration upgrades a snapshot whose major version is from to from+1
type migration struct {
	from  int
	apply func(*types.Snapshot)
}

var migrations = []migration{
	{from: 0, apply: migrateV0},
	{from: 1, apply: migrateV1},
}

// decode parses a stored blob and brings it up to CurrentVersion
func decode(data []byte) (*types.Snapshot, error) {
	const op = "storage.decode"

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, trackerrors.MalformedSnapshot(op, err)
	}
	if err := migrateSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// migrateSnapshot runs every migration from the snapshot's version up to
// CurrentVersion. Snapshots from a newer major version are rejected.
func migrateSnapshot(snap *types.Snapshot) error {
	current := majorVersion(types.CurrentVersion)
	v := majorVersion(snap.Version)
	if v > current {
		return trackerrors.InvalidSnapshot("storage.migrate", "unsupported snapshot version "+snap.Version)
	}
	for _, m := range migrations {
		if m.from >= v && m.from < current {
			m.apply(snap)
		}
	}
	snap.Version = types.CurrentVersion
	return nil
}

// majorVersion reads the leading integer of a dotted version; unversioned
// snapshots predate 1.0.0 and count as 0.
func majorVersion(version string) int {
	head, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// migrateV0 handles the earliest format, which omitted empty collections
func migrateV0(snap *types.Snapshot) {
	if snap.Tasks == nil {
		snap.Tasks = []types.Task{}
	}
	if snap.TimeEntries == nil {
		snap.TimeEntries = []types.TimeEntry{}
	}
	if snap.MealBreaks == nil {
		snap.MealBreaks = []types.MealBreak{}
	}
	if snap.WorkDays == nil {
		snap.WorkDays = []types.WorkDay{}
	}
	if snap.ActivityCounters == nil {
		snap.ActivityCounters = []types.ActivityCounter{}
	}
}

// migrateV1 fills settings added in 2.0.0, derives entry dates and
// recomputes durations that 1.x left unset on closed records.
func migrateV1(snap *types.Snapshot) {
	migrateV0(snap)
	snap.Settings = snap.Settings.FillDefaults()

	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if t.ID == "" {
			t.ID = types.NewID()
		}
		if t.Color == "" {
			t.Color = types.PaletteColor(i)
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
	}

	for i := range snap.TimeEntries {
		e := &snap.TimeEntries[i]
		if e.ID == "" {
			e.ID = types.NewID()
		}
		e.Date = types.DateOf(e.StartTime)
		if e.EndTime != nil && e.Duration == 0 {
			e.Close(*e.EndTime, snap.Settings.TimerMax())
		}
		if e.IsManuallyAdjusted && e.AdjustmentTimestamp == nil {
			at := e.StartTime
			if e.EndTime != nil {
				at = *e.EndTime
			}
			e.AdjustmentTimestamp = &at
		}
		if e.IsManuallyAdjusted && e.AdjustmentNote == "" {
			e.AdjustmentNote = "migrated"
		}
	}

	for i := range snap.MealBreaks {
		b := &snap.MealBreaks[i]
		if b.ID == "" {
			b.ID = types.NewID()
		}
		if b.Date == "" {
			b.Date = types.DateOf(b.StartTime)
		}
		if b.EndTime != nil && b.Duration == 0 {
			b.Close(*b.EndTime)
		}
	}

	for i := range snap.ActivityCounters {
		if snap.ActivityCounters[i].ID == "" {
			snap.ActivityCounters[i].ID = types.NewID()
		}
	}
}
