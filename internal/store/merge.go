// Package store holds the deduplicated, time-ordered record collection and
// the per-source metadata, and is its only writer.
package store

import (
	"slices"
	"strings"
	"time"

	"headlines/internal/model"
	"headlines/internal/similarity"
)

const (
	// RetentionWindow is how long a record is kept after its timestamp.
	RetentionWindow = 24 * time.Hour

	// MaxRecords caps the collection size.
	MaxRecords = 200

	// SimilarityThreshold is the score above which two headlines are the same story.
	SimilarityThreshold = 0.9
)

// Merge combines existing and incoming records: stale records are dropped,
// duplicates of already admitted records are rejected, the result is sorted
// newest first and capped at MaxRecords. When two records collide the one
// admitted first is kept unchanged. Merge is idempotent for a fixed now.
func Merge(existing, incoming []model.Record, now time.Time) []model.Record {
	out, _ := merge(existing, incoming, now)
	return out
}

func merge(existing, incoming []model.Record, now time.Time) ([]model.Record, int) {
	nowMs := now.UnixMilli()
	window := RetentionWindow.Milliseconds()
	fresh := func(r model.Record) bool { return nowMs-r.Timestamp < window }

	idx := newIndex()
	out := make([]model.Record, 0, len(existing)+len(incoming))
	for _, r := range existing {
		if fresh(r) {
			out = append(out, r.Clone())
			idx.add(r)
		}
	}

	admitted := 0
	for _, r := range incoming {
		if !fresh(r) || idx.duplicate(r, out) {
			continue
		}
		out = append(out, r.Clone())
		idx.add(r)
		admitted++
	}

	slices.SortStableFunc(out, func(a, b model.Record) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	if len(out) > MaxRecords {
		out = out[:MaxRecords]
	}
	return out, admitted
}

// index answers the cheap duplicate checks; the similarity check scans.
type index struct {
	ids       map[string]bool
	urls      map[string]bool
	headlines map[string]bool
}

func newIndex() *index {
	return &index{
		ids:       make(map[string]bool),
		urls:      make(map[string]bool),
		headlines: make(map[string]bool),
	}
}

func (x *index) add(r model.Record) {
	x.ids[r.ID] = true
	if u := strings.TrimSpace(r.URL); u != "" {
		x.urls[u] = true
	}
	x.headlines[normalizeHeadline(r.Headline)] = true
}

// duplicate reports whether r repeats a record already in admitted.
func (x *index) duplicate(r model.Record, admitted []model.Record) bool {
	if x.headlines[normalizeHeadline(r.Headline)] {
		return true
	}
	if u := strings.TrimSpace(r.URL); u != "" && x.urls[u] {
		return true
	}
	if x.ids[r.ID] {
		return true
	}
	for _, a := range admitted {
		if similarity.Similarity(r.Headline, a.Headline) > SimilarityThreshold {
			return true
		}
	}
	return false
}

func normalizeHeadline(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
