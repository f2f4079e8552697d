// Package fetcher retrieves headlines from external sources and normalizes
// them into records. Each source family has its own adapter.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"headlines/internal/classify"
	"headlines/internal/model"
)

const (
	userAgent    = "HeadlinesAggregator/1.0"
	maxBodyBytes = 5 * 1024 * 1024
	summaryLimit = 300
)

// ErrTimeout is returned when a call loses the race against its deadline.
var ErrTimeout = errors.New("timed out")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is what an adapter hands back to the coordinator: whatever records
// it managed to build and one message per failed underlying call.
type Result struct {
	Records []model.Record
	Errors  []string
}

// Adapter retrieves and normalizes records for one source type.
// Fetch never fails outright; failures are reported in Result.Errors.
type Adapter interface {
	Type() model.SourceType
	Fetch(ctx context.Context, timeout time.Duration) Result
}

type outcome[T any] struct {
	val T
	err error
}

// CallWithTimeout runs fn in its own goroutine and waits at most d for it.
// When the deadline wins, fn's context is cancelled and whatever it returns
// later is dropped.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}

// call is one underlying retrieval inside an adapter, e.g. a single feed URL.
type call struct {
	label string
	run   func(ctx context.Context, fetchedAt time.Time) ([]model.Record, error)
}

// runCalls executes every call concurrently, each under its own deadline,
// and gathers records in call order.
func runCalls(ctx context.Context, timeout time.Duration, fetchedAt time.Time, calls []call) Result {
	type slot struct {
		records []model.Record
		err     error
	}
	slots := make([]slot, len(calls))

	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			recs, err := CallWithTimeout(ctx, timeout, func(ctx context.Context) ([]model.Record, error) {
				return c.run(ctx, fetchedAt)
			})
			slots[i] = slot{records: recs, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, s := range slots {
		if s.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", calls[i].label, s.err))
			continue
		}
		res.Records = append(res.Records, s.records...)
	}
	return res
}

// getter performs GET requests through a circuit breaker.
type getter struct {
	client  HTTPClient
	breaker *Breaker
}

func (g *getter) get(ctx context.Context, url string) ([]byte, error) {
	return g.breaker.Do(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http get: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	})
}

// newRecord fills the fields every adapter derives the same way.
func newRecord(label string, fetchedAt time.Time, index int, headline string, origin model.SourceType, kind model.Kind) model.Record {
	headline = strings.Join(strings.Fields(headline), " ")
	return model.Record{
		ID:            RecordID(label, fetchedAt, index),
		Headline:      headline,
		Timestamp:     fetchedAt.UnixMilli(),
		Kind:          kind,
		OriginAdapter: origin,
		Category:      classify.Classify(headline),
	}
}

// RecordID derives a record ID from the source label, fetch time and the
// item's position in that fetch.
func RecordID(label string, fetchedAt time.Time, index int) string {
	return fmt.Sprintf("%s-%d-%d", slug(label), fetchedAt.UnixMilli(), index)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "source"
	}
	return out
}

var cashtagRe = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

// Cashtags extracts $TICKER symbols in order of first appearance.
func Cashtags(texts ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range texts {
		for _, m := range cashtagRe.FindAllStringSubmatch(t, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
