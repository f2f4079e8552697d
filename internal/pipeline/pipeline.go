// Package pipeline runs refresh cycles (due check, fetch, merge, persist)
// and serves the aggregated headlines.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"headlines/internal/aggregator"
	"headlines/internal/model"
	"headlines/internal/scheduler"
	"headlines/internal/store"
)

// SystemSource names records the pipeline itself produces.
const SystemSource = "system"

// NoDataID is the ID of the placeholder returned when there are no records.
const NoDataID = "no-data"

// RefreshResult describes one refresh cycle.
type RefreshResult struct {
	Due      []model.SourceType
	Sources  []aggregator.SourceOutcome
	Admitted int
	Rejected int
}

// Service serializes refresh cycles over one store.
type Service struct {
	mu    sync.Mutex
	store *store.Store
	coord *aggregator.Coordinator
	log   *slog.Logger
	now   func() time.Time
}

// New creates a Service.
func New(st *store.Store, coord *aggregator.Coordinator, log *slog.Logger) *Service {
	return &Service{
		store: st,
		coord: coord,
		log:   log,
		now:   time.Now,
	}
}

// Refresh fetches every due source (every source when force is set) and
// merges the results into the store. A persistence failure is returned as
// an error, but the merged records are already being served. A cycle whose
// ctx is cancelled before the merge changes nothing.
func (s *Service) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return RefreshResult{}, fmt.Errorf("start refresh: %w", err)
	}

	now := s.now()
	snap := s.store.Snapshot()
	due := scheduler.DueSources(now, snap.Metadata, force)
	if len(due) == 0 {
		s.log.Debug("no sources due")
		return RefreshResult{}, nil
	}

	s.log.Info("refresh cycle started", "due", due, "force", force)
	out := s.coord.Run(ctx, due, snap.Metadata, now)

	res := RefreshResult{Due: due, Sources: out.Sources}
	// A cancelled cycle says nothing about the sources; keep their metadata as is.
	if err := ctx.Err(); err != nil {
		s.log.Warn("refresh cycle cancelled", "due", due, "error", err)
		return res, fmt.Errorf("refresh cancelled: %w", err)
	}

	commit, err := s.store.Commit(context.WithoutCancel(ctx), out.Records, out.Metadata, now)
	res.Admitted = commit.Admitted
	res.Rejected = commit.Rejected
	if err != nil {
		return res, fmt.Errorf("commit refresh: %w", err)
	}

	s.log.Info("refresh cycle finished",
		"fetched", len(out.Records), "admitted", res.Admitted, "stored", len(commit.State.Records))
	return res, nil
}

// RefreshDue runs a non-forced cycle. It implements scheduler.Refresher.
func (s *Service) RefreshDue(ctx context.Context) error {
	_, err := s.Refresh(ctx, false)
	return err
}

// Headlines returns the stored records newest first, or a single
// placeholder record explaining why there are none.
func (s *Service) Headlines() []model.Record {
	snap := s.store.Snapshot()
	if len(snap.Records) > 0 {
		return snap.Records
	}
	return []model.Record{NoData(snap.Metadata, s.now())}
}

// NoData builds the placeholder record for an empty store.
func NoData(meta map[model.SourceType]model.SourceMetadata, now time.Time) model.Record {
	return model.Record{
		ID:            NoDataID,
		Headline:      "No headlines available",
		Source:        SystemSource,
		Timestamp:     now.UnixMilli(),
		Summary:       noDataReason(meta),
		Kind:          model.KindNews,
		OriginAdapter: model.SourceType(SystemSource),
		Category:      model.CategoryGeneral,
	}
}

func noDataReason(meta map[model.SourceType]model.SourceMetadata) string {
	refreshed := false
	var failures []string
	for _, t := range model.SourceTypes() {
		m := meta[t]
		if m.LastRefreshAt > 0 {
			refreshed = true
		}
		if n := len(m.RecentErrors); n > 0 {
			failures = append(failures, fmt.Sprintf("%s: %s", t, m.RecentErrors[n-1]))
		}
	}

	switch {
	case !refreshed:
		return "Sources have not been refreshed yet."
	case len(failures) > 0:
		return "Sources failed: " + strings.Join(failures, "; ")
	default:
		return fmt.Sprintf("No headlines from the last %d hours.", int(store.RetentionWindow.Hours()))
	}
}

// SourceState is the public view of one source's metadata.
type SourceState struct {
	LastRefresh     int64    `json:"lastRefresh"`
	RefreshInterval int      `json:"refreshInterval"`
	RecentErrors    []string `json:"recentErrors"`
	TotalFetches    int64    `json:"totalFetches"`
}

// Status summarizes every source type.
type Status struct {
	Sources      map[model.SourceType]SourceState `json:"sources"`
	TotalFetches int64                            `json:"totalFetches"`
}

// Status reports the current per-source metadata.
func (s *Service) Status() Status {
	return NewStatus(s.store.Snapshot().Metadata)
}

// NewStatus builds a Status from metadata.
func NewStatus(meta map[model.SourceType]model.SourceMetadata) Status {
	st := Status{Sources: make(map[model.SourceType]SourceState, len(meta))}
	for t, m := range meta {
		errs := m.RecentErrors
		if errs == nil {
			errs = []string{}
		}
		st.Sources[t] = SourceState{
			LastRefresh:     m.LastRefreshAt,
			RefreshInterval: m.RefreshIntervalMinutes,
			RecentErrors:    errs,
			TotalFetches:    m.TotalFetchCount,
		}
		st.TotalFetches += m.TotalFetchCount
	}
	return st
}
