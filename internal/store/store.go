package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"headlines/internal/metrics"
	"headlines/internal/model"
	"headlines/internal/scheduler"
	"headlines/internal/storage"
)

// CommitResult describes one merge into the store.
type CommitResult struct {
	State    model.State
	Admitted int
	Rejected int
}

// Store is the single writer of the aggregated state. Readers get copies.
type Store struct {
	mu      sync.RWMutex
	storage storage.Storage
	log     *slog.Logger
	records []model.Record
	meta    map[model.SourceType]model.SourceMetadata
}

// New creates an empty Store. A nil storage keeps state in memory only.
func New(st storage.Storage, log *slog.Logger) *Store {
	return &Store{
		storage: st,
		log:     log,
		meta:    withDefaults(nil),
	}
}

// Load replaces the in-memory state with the persisted one. On a read
// failure the store is left empty and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.meta = withDefaults(nil)
	if s.storage == nil {
		return nil
	}

	records, err := s.storage.LoadRecords(ctx)
	if err != nil {
		s.log.Warn("load records, starting empty", "error", err)
		return fmt.Errorf("load records: %w", err)
	}
	meta, err := s.storage.LoadMetadata(ctx)
	if err != nil {
		s.log.Warn("load source metadata, starting empty", "error", err)
		return fmt.Errorf("load source metadata: %w", err)
	}

	s.records = records
	s.meta = withDefaults(meta)
	metrics.StoredRecords.Set(float64(len(records)))
	s.log.Info("store loaded", "records", len(records))
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() model.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() model.State {
	return model.State{
		Records:  model.CloneRecords(s.records),
		Metadata: model.CloneMetadata(s.meta),
	}
}

// Commit merges incoming into the collection, overlays meta onto the stored
// metadata and persists the result. When persisting fails the new state is
// still kept in memory and returned together with the error.
func (s *Store) Commit(ctx context.Context, incoming []model.Record, meta map[model.SourceType]model.SourceMetadata, now time.Time) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, admitted := merge(s.records, incoming, now)
	s.records = merged
	for t, m := range meta {
		s.meta[t] = m.Clone()
	}

	res := CommitResult{
		State:    s.snapshotLocked(),
		Admitted: admitted,
		Rejected: len(incoming) - admitted,
	}
	metrics.RecordMerge(res.Admitted, res.Rejected, len(merged))
	s.log.Info("records merged",
		"incoming", len(incoming), "admitted", res.Admitted, "rejected", res.Rejected, "stored", len(merged))

	if s.storage == nil {
		return res, nil
	}
	if err := s.storage.SaveState(ctx, res.State); err != nil {
		metrics.RecordPersistFailure()
		s.log.Error("persist state", "error", err)
		return res, fmt.Errorf("persist state: %w", err)
	}
	return res, nil
}

// withDefaults fills in metadata for every known source type that has none.
func withDefaults(meta map[model.SourceType]model.SourceMetadata) map[model.SourceType]model.SourceMetadata {
	out := model.CloneMetadata(meta)
	for _, t := range model.SourceTypes() {
		m, ok := out[t]
		if !ok {
			out[t] = scheduler.DefaultMetadata(t)
			continue
		}
		// Intervals are fixed; a stored value from an older build is replaced.
		m.RefreshIntervalMinutes = scheduler.DefaultMetadata(t).RefreshIntervalMinutes
		out[t] = m
	}
	return out
}
