package storage

import (
	"context"
	"strconv"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/repository"
	"worktrack/internal/types"
)

// Revision describes a previously saved snapshot kept by the blob store
type Revision struct {
	ID          int64     `json:"id"`
	ReplacedAt  time.Time `json:"replacedAt"`
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Tasks       int       `json:"tasks"`
	TimeEntries int       `json:"timeEntries"`
	Bytes       int       `json:"bytes"`
}

// Revisions lists up to limit earlier snapshots, newest first. Blob stores
// without history yield an empty list.
func (s *Store) Revisions(ctx context.Context, limit int) ([]Revision, error) {
	versioned, ok := s.blobs.(repository.VersionedBlobStore)
	if !ok {
		return nil, nil
	}

	entries, err := versioned.History(ctx, s.key, limit)
	if err != nil {
		s.reportFailure("Revisions", err)
		return nil, err
	}

	out := make([]Revision, 0, len(entries))
	for _, e := range entries {
		snap, err := decode(e.Value)
		if err != nil {
			s.logger.Warn("Skipping unreadable revision", "id", e.ID, "error", err)
			continue
		}
		out = append(out, Revision{
			ID:          e.ID,
			ReplacedAt:  e.ReplacedAt,
			Version:     snap.Version,
			LastUpdated: snap.LastUpdated,
			Tasks:       len(snap.Tasks),
			TimeEntries: len(snap.TimeEntries),
			Bytes:       len(e.Value),
		})
	}
	return out, nil
}

// Restore replaces the current snapshot with revision id. The snapshot being
// replaced becomes a revision itself, so a restore can be undone.
func (s *Store) Restore(ctx context.Context, id int64) (*types.Snapshot, error) {
	versioned, ok := s.blobs.(repository.VersionedBlobStore)
	if !ok {
		return nil, trackerrors.HandleNotFound("Restore", "revision", strconv.FormatInt(id, 10))
	}

	entries, err := versioned.History(ctx, s.key, 0)
	if err != nil {
		s.reportFailure("Restore", err)
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			s.logger.Info("Restoring snapshot revision", "id", id, "replaced_at", e.ReplacedAt)
			return s.Import(ctx, e.Value)
		}
	}
	return nil, trackerrors.HandleNotFound("Restore", "revision", strconv.FormatInt(id, 10))
}
