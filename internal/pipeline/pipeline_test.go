package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"headlines/internal/aggregator"
	"headlines/internal/fetcher"
	"headlines/internal/model"
	"headlines/internal/store"
)

var now = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	sourceType model.SourceType
	records    []model.Record
	errs       []string

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	onFetch  func()
}

func (f *fakeAdapter) Type() model.SourceType { return f.sourceType }

func (f *fakeAdapter) Fetch(_ context.Context, _ time.Duration) fetcher.Result {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	if n > f.maxSeen.Load() {
		f.maxSeen.Store(n)
	}
	if f.onFetch != nil {
		f.onFetch()
	}
	time.Sleep(f.delay)
	return fetcher.Result{Records: model.CloneRecords(f.records), Errors: f.errs}
}

type failingStorage struct{}

func (failingStorage) LoadRecords(context.Context) ([]model.Record, error) { return nil, nil }

func (failingStorage) LoadMetadata(context.Context) (map[model.SourceType]model.SourceMetadata, error) {
	return nil, nil
}

func (failingStorage) SaveState(context.Context, model.State) error {
	return errors.New("database is locked")
}

func (failingStorage) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(st *store.Store, adapters ...fetcher.Adapter) *Service {
	log := discardLogger()
	if st == nil {
		st = store.New(nil, log)
	}
	svc := New(st, aggregator.New(log, adapters...), log)
	svc.now = func() time.Time { return now }
	return svc
}

func record(id, headline string, kind model.Kind, age time.Duration) model.Record {
	return model.Record{
		ID:        id,
		Headline:  headline,
		Source:    "test",
		Timestamp: now.Add(-age).UnixMilli(),
		Kind:      kind,
		Category:  model.CategoryGeneral,
	}
}

func newsAdapter() *fakeAdapter {
	return &fakeAdapter{sourceType: model.SourceFeed, records: []model.Record{
		record("feed-1", "Fed cuts rates", model.KindNews, time.Hour),
		record("feed-2", "Gold hits record high", model.KindNews, 2*time.Hour),
	}}
}

func socialAdapter() *fakeAdapter {
	return &fakeAdapter{sourceType: model.SourceSocial, records: []model.Record{
		record("social-1", "fed cuts rates.", model.KindSocial, time.Minute),
		record("social-2", "Anyone buying the dip?", model.KindSocial, 30*time.Minute),
	}}
}

func TestRefreshMergesDueSources(t *testing.T) {
	feed, social := newsAdapter(), socialAdapter()
	api := &fakeAdapter{sourceType: model.SourceKeyedAPI, errs: []string{"api key not configured"}}
	svc := newTestService(nil, feed, social, api)

	res, err := svc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if diff := cmp.Diff(model.SourceTypes(), res.Due); diff != "" {
		t.Errorf("due mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, res.Admitted); diff != "" {
		t.Errorf("admitted mismatch (-want +got):\n%s", diff)
	}

	var got []string
	for _, r := range svc.Headlines() {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{"social-2", "feed-1", "feed-2"}, got); diff != "" {
		t.Errorf("headlines mismatch (-want +got):\n%s", diff)
	}

	status := svc.Status()
	if diff := cmp.Diff(int64(3), status.TotalFetches); diff != "" {
		t.Errorf("total fetches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"api key not configured"}, status.Sources[model.SourceKeyedAPI].RecentErrors); diff != "" {
		t.Errorf("keyed api errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshSkipsSourcesNotDue(t *testing.T) {
	feed, social := newsAdapter(), socialAdapter()
	svc := newTestService(nil, feed, social)

	if _, err := svc.Refresh(context.Background(), false); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	res, err := svc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if len(res.Due) != 0 {
		t.Errorf("expected nothing due right after a refresh, got %v", res.Due)
	}
	if feed.calls.Load() != 1 || social.calls.Load() != 1 {
		t.Errorf("adapters called again: feed=%d social=%d", feed.calls.Load(), social.calls.Load())
	}

	svc.now = func() time.Time { return now.Add(15 * time.Minute) }
	res, err = svc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	if diff := cmp.Diff([]model.SourceType{model.SourceFeed, model.SourceSocial}, res.Due); diff != "" {
		t.Errorf("due mismatch (-want +got):\n%s", diff)
	}
}

func TestForcedRefresh(t *testing.T) {
	feed := newsAdapter()
	svc := newTestService(nil, feed)

	for i := 0; i < 2; i++ {
		if _, err := svc.Refresh(context.Background(), true); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	if diff := cmp.Diff(int32(2), feed.calls.Load()); diff != "" {
		t.Errorf("feed calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(2), svc.Status().Sources[model.SourceFeed].TotalFetches); diff != "" {
		t.Errorf("fetch count mismatch (-want +got):\n%s", diff)
	}
	if n := len(svc.Headlines()); n != 2 {
		t.Errorf("repeated refresh must not duplicate records, got %d", n)
	}
}

func TestRefreshPersistFailure(t *testing.T) {
	st := store.New(failingStorage{}, discardLogger())
	svc := newTestService(st, newsAdapter())

	_, err := svc.Refresh(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("expected persist error, got %v", err)
	}
	if n := len(svc.Headlines()); n != 2 {
		t.Errorf("expected merged records to be served, got %d", n)
	}
	if err := svc.RefreshDue(context.Background()); err != nil {
		t.Errorf("nothing due, expected no error, got %v", err)
	}
}

func TestRefreshCancelledBeforeStart(t *testing.T) {
	feed := newsAdapter()
	svc := newTestService(nil, feed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Refresh(ctx, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if diff := cmp.Diff(int32(0), feed.calls.Load()); diff != "" {
		t.Errorf("feed calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(0), svc.Status().TotalFetches); diff != "" {
		t.Errorf("metadata must be untouched (-want +got):\n%s", diff)
	}
}

func TestRefreshCancelledMidCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := newsAdapter()
	feed.onFetch = cancel
	svc := newTestService(nil, feed, socialAdapter())

	_, err := svc.Refresh(ctx, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	for _, src := range model.SourceTypes() {
		st := svc.Status().Sources[src]
		if st.LastRefresh != 0 || st.TotalFetches != 0 || len(st.RecentErrors) != 0 {
			t.Errorf("%s metadata changed by a cancelled cycle: %+v", src, st)
		}
	}
	if got := svc.Headlines(); len(got) != 1 || got[0].ID != NoDataID {
		t.Errorf("cancelled cycle must not merge records, got %v", got)
	}

	res, err := svc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh after cancel: %v", err)
	}
	if diff := cmp.Diff(model.SourceTypes(), res.Due); diff != "" {
		t.Errorf("every source should still be due (-want +got):\n%s", diff)
	}
}

func TestRefreshCyclesAreSerialized(t *testing.T) {
	feed := newsAdapter()
	feed.delay = 20 * time.Millisecond
	svc := newTestService(nil, feed)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Refresh(context.Background(), true)
		}()
	}
	wg.Wait()

	if diff := cmp.Diff(int32(4), feed.calls.Load()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int32(1), feed.maxSeen.Load()); diff != "" {
		t.Errorf("cycles overlapped (-want +got):\n%s", diff)
	}
}

func TestHeadlinesNoData(t *testing.T) {
	tests := []struct {
		name       string
		meta       map[model.SourceType]model.SourceMetadata
		wantReason string
	}{
		{
			name:       "never refreshed",
			meta:       nil,
			wantReason: "Sources have not been refreshed yet.",
		},
		{
			name: "sources failed",
			meta: map[model.SourceType]model.SourceMetadata{
				model.SourceFeed:     {LastRefreshAt: now.UnixMilli(), RecentErrors: []string{"old", "Wire: unexpected status 500"}},
				model.SourceKeyedAPI: {LastRefreshAt: now.UnixMilli(), RecentErrors: []string{"api key not configured"}},
			},
			wantReason: "Sources failed: feed: Wire: unexpected status 500; keyed_api: api key not configured",
		},
		{
			name: "nothing recent",
			meta: map[model.SourceType]model.SourceMetadata{
				model.SourceFeed: {LastRefreshAt: now.UnixMilli()},
			},
			wantReason: "No headlines from the last 24 hours.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NoData(tt.meta, now)
			want := model.Record{
				ID:            "no-data",
				Headline:      "No headlines available",
				Source:        "system",
				Timestamp:     now.UnixMilli(),
				Summary:       tt.wantReason,
				Kind:          model.KindNews,
				OriginAdapter: model.SourceType("system"),
				Category:      model.CategoryGeneral,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("placeholder mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHeadlinesEmptyStore(t *testing.T) {
	svc := newTestService(nil)

	got := svc.Headlines()
	if len(got) != 1 || got[0].ID != NoDataID {
		t.Fatalf("expected the placeholder record, got %v", got)
	}
}

func TestNewStatus(t *testing.T) {
	meta := map[model.SourceType]model.SourceMetadata{
		model.SourceFeed:   {LastRefreshAt: 10, RefreshIntervalMinutes: 15, TotalFetchCount: 4},
		model.SourceSocial: {LastRefreshAt: 20, RefreshIntervalMinutes: 15, RecentErrors: []string{"x"}, TotalFetchCount: 2},
	}

	want := Status{
		Sources: map[model.SourceType]SourceState{
			model.SourceFeed:   {LastRefresh: 10, RefreshInterval: 15, RecentErrors: []string{}, TotalFetches: 4},
			model.SourceSocial: {LastRefresh: 20, RefreshInterval: 15, RecentErrors: []string{"x"}, TotalFetches: 2},
		},
		TotalFetches: 6,
	}
	if diff := cmp.Diff(want, NewStatus(meta)); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}
