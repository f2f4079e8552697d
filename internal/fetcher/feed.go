package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"headlines/internal/model"
)

// ItemsPerFeed caps how many entries are taken from each feed per fetch.
const ItemsPerFeed = 5

// FeedSource is one RSS/Atom feed.
type FeedSource struct {
	Name string
	URL  string
}

// FeedAdapter reads RSS/Atom feeds and turns their entries into news records.
type FeedAdapter struct {
	getter *getter
	feeds  []FeedSource
	now    func() time.Time
}

// NewFeedAdapter creates a FeedAdapter over the given feeds.
func NewFeedAdapter(client HTTPClient, feeds []FeedSource) *FeedAdapter {
	return &FeedAdapter{
		getter: &getter{client: client, breaker: NewBreaker(DefaultBreakerConfig("feed"))},
		feeds:  feeds,
		now:    time.Now,
	}
}

// Type implements Adapter.
func (a *FeedAdapter) Type() model.SourceType { return model.SourceFeed }

// Fetch implements Adapter. Every feed is fetched concurrently under timeout.
func (a *FeedAdapter) Fetch(ctx context.Context, timeout time.Duration) Result {
	calls := make([]call, 0, len(a.feeds))
	for _, src := range a.feeds {
		calls = append(calls, call{
			label: src.Name,
			run: func(ctx context.Context, fetchedAt time.Time) ([]model.Record, error) {
				feed, err := a.FetchFeed(ctx, src.URL)
				if err != nil {
					return nil, err
				}
				return FeedRecords(src.Name, feed.Items, fetchedAt), nil
			},
		})
	}
	return runCalls(ctx, timeout, a.now(), calls)
}

// FetchFeed downloads and parses an RSS/Atom feed from the given URL.
func (a *FeedAdapter) FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := a.getter.get(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// FeedRecords normalizes at most ItemsPerFeed feed items into records.
// Items without a title are skipped.
func FeedRecords(name string, items []*gofeed.Item, fetchedAt time.Time) []model.Record {
	var out []model.Record
	for _, item := range items {
		if len(out) == ItemsPerFeed {
			break
		}
		if strings.TrimSpace(item.Title) == "" {
			continue
		}

		rec := newRecord(name, fetchedAt, len(out), item.Title, model.SourceFeed, model.KindNews)
		rec.Source = name
		rec.URL = strings.TrimSpace(item.Link)
		if ts := itemTime(item); ts != nil {
			rec.Timestamp = ts.UnixMilli()
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		rec.Summary = truncate(htmlText(desc), summaryLimit)
		rec.Tickers = Cashtags(rec.Headline, rec.Summary)

		out = append(out, rec)
	}
	return out
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// htmlText flattens an HTML fragment to whitespace-normalized text.
func htmlText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
