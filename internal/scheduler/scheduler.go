// Package scheduler decides which source types are due for a refresh and
// drives periodic refresh cycles.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"headlines/internal/model"
)

// RefreshInterval returns the fixed refresh cadence of a source type.
// Unknown types get the most conservative interval.
func RefreshInterval(t model.SourceType) time.Duration {
	switch t {
	case model.SourceFeed, model.SourceSocial:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// DefaultMetadata returns the initial metadata of a source type that has
// never been refreshed.
func DefaultMetadata(t model.SourceType) model.SourceMetadata {
	return model.SourceMetadata{
		RefreshIntervalMinutes: int(RefreshInterval(t) / time.Minute),
	}
}

// IsDue reports whether a source of type t should be fetched at now. The
// interval always comes from RefreshInterval; the one stored in meta is
// only reported.
func IsDue(now time.Time, t model.SourceType, meta model.SourceMetadata, force bool) bool {
	if force {
		return true
	}
	return now.UnixMilli()-meta.LastRefreshAt >= RefreshInterval(t).Milliseconds()
}

// DueSources returns the due source types in model.SourceTypes order.
// A type with no metadata entry has never been refreshed and is due.
func DueSources(now time.Time, meta map[model.SourceType]model.SourceMetadata, force bool) []model.SourceType {
	var due []model.SourceType
	for _, t := range model.SourceTypes() {
		m, ok := meta[t]
		if !ok {
			m = DefaultMetadata(t)
		}
		if IsDue(now, t, m, force) {
			due = append(due, t)
		}
	}
	return due
}

// Refresher runs one non-forced refresh cycle.
type Refresher interface {
	RefreshDue(ctx context.Context) error
}

// Scheduler periodically asks a Refresher to refresh whatever is due.
type Scheduler struct {
	refresher Refresher
	log       *slog.Logger
	tick      time.Duration
}

// New creates a Scheduler with a 1-minute tick.
func New(refresher Refresher, log *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		log:       log,
		tick:      1 * time.Minute,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.log.Debug("checking due sources")
	if err := s.refresher.RefreshDue(ctx); err != nil {
		s.log.Error("refresh cycle", "error", err)
	}
}
