// Package aggregator fans a refresh cycle out to every due source adapter
// and gathers what they return.
package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"headlines/internal/fetcher"
	"headlines/internal/metrics"
	"headlines/internal/model"
	"headlines/internal/scheduler"
)

// MaxRecentErrors bounds SourceMetadata.RecentErrors.
const MaxRecentErrors = 5

const (
	defaultTimeout = 5 * time.Second
	defaultGrace   = 1 * time.Second
)

// DefaultTimeouts returns the per-source fetch deadlines. Feed-style sources
// get a shorter deadline than the keyed API.
func DefaultTimeouts() map[model.SourceType]time.Duration {
	return map[model.SourceType]time.Duration{
		model.SourceFeed:     5 * time.Second,
		model.SourceSocial:   5 * time.Second,
		model.SourceKeyedAPI: 8 * time.Second,
	}
}

// SourceOutcome is the tagged result of one source's fetch attempt.
type SourceOutcome struct {
	Source   model.SourceType
	Records  int
	Errors   []string
	Duration time.Duration
}

// Failed reports whether the source produced errors and no records.
func (o SourceOutcome) Failed() bool {
	return len(o.Errors) > 0 && o.Records == 0
}

// Outcome is everything one coordinator run produced.
type Outcome struct {
	Records  []model.Record
	Sources  []SourceOutcome
	Metadata map[model.SourceType]model.SourceMetadata
}

// Coordinator runs source adapters concurrently, each under its own deadline.
type Coordinator struct {
	adapters map[model.SourceType]fetcher.Adapter
	timeouts map[model.SourceType]time.Duration
	grace    time.Duration
	log      *slog.Logger
}

// New creates a Coordinator over the given adapters, keyed by their Type.
func New(log *slog.Logger, adapters ...fetcher.Adapter) *Coordinator {
	byType := make(map[model.SourceType]fetcher.Adapter, len(adapters))
	for _, a := range adapters {
		byType[a.Type()] = a
	}
	return &Coordinator{
		adapters: byType,
		timeouts: DefaultTimeouts(),
		grace:    defaultGrace,
		log:      log,
	}
}

// SetTimeout overrides the fetch deadline of one source type.
func (c *Coordinator) SetTimeout(t model.SourceType, d time.Duration) {
	c.timeouts[t] = d
}

func (c *Coordinator) timeout(t model.SourceType) time.Duration {
	if d, ok := c.timeouts[t]; ok {
		return d
	}
	return defaultTimeout
}

// Run fetches every due source concurrently and waits for all of them.
// A source that fails or misses its deadline contributes no records and
// its errors are recorded in the returned metadata. meta is not modified.
func (c *Coordinator) Run(ctx context.Context, due []model.SourceType, meta map[model.SourceType]model.SourceMetadata, now time.Time) Outcome {
	slots := make([]fetcher.Result, len(due))
	durations := make([]time.Duration, len(due))

	var g errgroup.Group
	for i, t := range due {
		g.Go(func() error {
			start := time.Now()
			slots[i] = c.fetch(ctx, t)
			durations[i] = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Metadata: model.CloneMetadata(meta)}
	for i, t := range due {
		res := slots[i]
		out.Records = append(out.Records, res.Records...)
		out.Sources = append(out.Sources, SourceOutcome{
			Source:   t,
			Records:  len(res.Records),
			Errors:   res.Errors,
			Duration: durations[i],
		})

		m, ok := out.Metadata[t]
		if !ok {
			m = scheduler.DefaultMetadata(t)
		}
		m.LastRefreshAt = now.UnixMilli()
		m.RecentErrors = appendBounded(m.RecentErrors, res.Errors, MaxRecentErrors)
		m.TotalFetchCount++
		out.Metadata[t] = m

		metrics.RecordFetch(t, len(res.Records), len(res.Errors), durations[i])
		if len(res.Errors) > 0 {
			c.log.Warn("source fetch had errors",
				"source", t, "records", len(res.Records), "errors", res.Errors, "duration", durations[i])
		} else {
			c.log.Info("source fetched", "source", t, "records", len(res.Records), "duration", durations[i])
		}
	}
	return out
}

// fetch runs one adapter. The adapter enforces its own deadline per call;
// the outer deadline with a grace period abandons adapters that ignore it.
func (c *Coordinator) fetch(ctx context.Context, t model.SourceType) fetcher.Result {
	a, ok := c.adapters[t]
	if !ok {
		return fetcher.Result{Errors: []string{string(t) + ": source not configured"}}
	}

	timeout := c.timeout(t)
	res, err := fetcher.CallWithTimeout(ctx, timeout+c.grace, func(ctx context.Context) (fetcher.Result, error) {
		return a.Fetch(ctx, timeout), nil
	})
	if err != nil {
		return fetcher.Result{Errors: []string{string(t) + ": " + err.Error()}}
	}
	return res
}

func appendBounded(existing, add []string, limit int) []string {
	out := append(append([]string(nil), existing...), add...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
