package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"headlines/internal/model"
)

var now = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

func rec(id, headline string, ts int64) model.Record {
	return model.Record{
		ID:            id,
		Headline:      headline,
		Source:        "test",
		Timestamp:     ts,
		Kind:          model.KindNews,
		OriginAdapter: model.SourceFeed,
		Category:      model.CategoryGeneral,
	}
}

func ids(records []model.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestMergeNearDuplicate(t *testing.T) {
	existing := []model.Record{rec("a", "Fed cuts rates", ago(time.Hour))}
	incoming := []model.Record{rec("b", "fed cuts rates.", ago(time.Minute))}

	got := Merge(existing, incoming, now)

	if diff := cmp.Diff(existing, got); diff != "" {
		t.Errorf("earlier record must win unchanged (-want +got):\n%s", diff)
	}
}

func TestMergeDuplicateRules(t *testing.T) {
	base := rec("wire-1", "Oil prices slump on supply glut", ago(time.Hour))
	base.URL = "https://wire.example.com/oil"

	tests := []struct {
		name     string
		incoming model.Record
		wantIDs  []string
	}{
		{
			name:     "exact headline after normalization",
			incoming: rec("other-1", "  OIL prices   slump on SUPPLY glut ", ago(time.Minute)),
			wantIDs:  []string{"wire-1"},
		},
		{
			name: "same url",
			incoming: func() model.Record {
				r := rec("other-2", "Crude tumbles as inventories swell", ago(time.Minute))
				r.URL = "https://wire.example.com/oil"
				return r
			}(),
			wantIDs: []string{"wire-1"},
		},
		{
			name:     "similar headline",
			incoming: rec("other-3", "Oil prices slump on supply glut!", ago(time.Minute)),
			wantIDs:  []string{"wire-1"},
		},
		{
			name:     "same id",
			incoming: rec("wire-1", "Completely different story", ago(time.Minute)),
			wantIDs:  []string{"wire-1"},
		},
		{
			name:     "distinct record is admitted",
			incoming: rec("other-4", "Gold hits record high", ago(time.Minute)),
			wantIDs:  []string{"other-4", "wire-1"},
		},
		{
			name:     "older distinct record sorts after",
			incoming: rec("other-5", "Tech stocks rebound sharply", ago(2*time.Hour)),
			wantIDs:  []string{"wire-1", "other-5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge([]model.Record{base}, []model.Record{tt.incoming}, now)
			if diff := cmp.Diff(tt.wantIDs, ids(got)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDeduplicatesWithinIncoming(t *testing.T) {
	incoming := []model.Record{
		rec("a", "Senate passes budget bill", ago(3*time.Minute)),
		rec("b", "Senate passes budget bill.", ago(1*time.Minute)),
		rec("c", "Bitcoin rallies past resistance", ago(2*time.Minute)),
	}

	got := Merge(nil, incoming, now)

	if diff := cmp.Diff([]string{"c", "a"}, ids(got)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeRetention(t *testing.T) {
	existing := []model.Record{
		rec("fresh", "Markets open higher", ago(23*time.Hour)),
		rec("edge", "Dollar weakens against yen", ago(RetentionWindow-time.Millisecond)),
		rec("expired", "Treasury auction draws demand", ago(RetentionWindow)),
	}
	incoming := []model.Record{
		rec("stale-in", "Copper prices fall", ago(25*time.Hour)),
		rec("new", "Apple unveils new chip", ago(time.Minute)),
	}

	got := Merge(existing, incoming, now)

	if diff := cmp.Diff([]string{"new", "fresh", "edge"}, ids(got)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got {
		if now.UnixMilli()-r.Timestamp >= RetentionWindow.Milliseconds() {
			t.Errorf("record %s outside retention window", r.ID)
		}
	}
}

func TestMergeCapAndOrder(t *testing.T) {
	var incoming []model.Record
	for i := 0; i < 250; i++ {
		incoming = append(incoming, rec(fmt.Sprintf("id-%d", i), fmt.Sprintf("story %d", i), ago(time.Duration(i)*time.Minute)))
	}

	got := Merge(nil, incoming, now)

	if diff := cmp.Diff(MaxRecords, len(got)); diff != "" {
		t.Fatalf("size mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Fatalf("records not sorted newest first at %d", i)
		}
	}
	if got[0].ID != "id-0" || got[len(got)-1].ID != "id-199" {
		t.Errorf("expected the 200 newest records, got %s..%s", got[0].ID, got[len(got)-1].ID)
	}
}

func TestMergeStableForEqualTimestamps(t *testing.T) {
	ts := ago(time.Hour)
	existing := []model.Record{rec("first", "Fed holds rates steady", ts)}
	incoming := []model.Record{
		rec("second", "Nvidia unveils AI chip", ts),
		rec("third", "Mortgage demand cools", ts),
	}

	got := Merge(existing, incoming, now)

	if diff := cmp.Diff([]string{"first", "second", "third"}, ids(got)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIdempotent(t *testing.T) {
	existing := []model.Record{
		rec("a", "Fed cuts rates", ago(time.Hour)),
		rec("old", "Yesterday's news", ago(30*time.Hour)),
	}
	incoming := []model.Record{
		rec("b", "fed cuts rates.", ago(time.Minute)),
		rec("c", "Ethereum upgrade goes live", ago(2*time.Hour)),
		rec("d", "Congress debates tariff bill", ago(10*time.Minute)),
	}

	once := Merge(existing, incoming, now)
	twice := Merge(once, incoming, now)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merge is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	r := rec("a", "Tesla deliveries beat forecasts", ago(time.Hour))
	r.Tickers = []string{"TSLA"}
	incoming := []model.Record{r}

	got := Merge(nil, incoming, now)
	got[0].Tickers[0] = "XXX"

	if incoming[0].Tickers[0] != "TSLA" {
		t.Error("merge result shares memory with its input")
	}
}
