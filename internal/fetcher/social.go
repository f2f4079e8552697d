package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"headlines/internal/model"
)

// PostsPerCommunity caps how many posts are taken from each subreddit.
const PostsPerCommunity = 5

// DefaultSocialBaseURL is the public Reddit JSON endpoint.
const DefaultSocialBaseURL = "https://www.reddit.com"

// SocialAdapter reads hot posts from subreddits and turns them into social records.
type SocialAdapter struct {
	getter      *getter
	baseURL     string
	communities []string
	now         func() time.Time
}

// NewSocialAdapter creates a SocialAdapter. An empty baseURL uses DefaultSocialBaseURL.
func NewSocialAdapter(client HTTPClient, baseURL string, communities []string) *SocialAdapter {
	if baseURL == "" {
		baseURL = DefaultSocialBaseURL
	}
	return &SocialAdapter{
		getter:      &getter{client: client, breaker: NewBreaker(DefaultBreakerConfig("social"))},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		communities: communities,
		now:         time.Now,
	}
}

// Type implements Adapter.
func (a *SocialAdapter) Type() model.SourceType { return model.SourceSocial }

// Fetch implements Adapter.
func (a *SocialAdapter) Fetch(ctx context.Context, timeout time.Duration) Result {
	calls := make([]call, 0, len(a.communities))
	for _, sub := range a.communities {
		name := "r/" + strings.TrimPrefix(sub, "r/")
		calls = append(calls, call{
			label: name,
			run: func(ctx context.Context, fetchedAt time.Time) ([]model.Record, error) {
				body, err := a.getter.get(ctx, fmt.Sprintf("%s/%s/hot.json?limit=%d", a.baseURL, name, PostsPerCommunity*2))
				if err != nil {
					return nil, err
				}
				var listing Listing
				if err := json.Unmarshal(body, &listing); err != nil {
					return nil, fmt.Errorf("decode listing: %w", err)
				}
				return SocialRecords(name, a.baseURL, &listing, fetchedAt), nil
			},
		})
	}
	return runCalls(ctx, timeout, a.now(), calls)
}

// Listing is the subset of a Reddit listing response we read.
type Listing struct {
	Data struct {
		Children []struct {
			Data Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Post is a single Reddit submission.
type Post struct {
	Title      string  `json:"title"`
	Permalink  string  `json:"permalink"`
	URL        string  `json:"url"`
	SelfText   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// SocialRecords normalizes at most PostsPerCommunity posts into records.
// Stickied posts and posts without a title are skipped.
func SocialRecords(name, baseURL string, listing *Listing, fetchedAt time.Time) []model.Record {
	var out []model.Record
	for _, child := range listing.Data.Children {
		if len(out) == PostsPerCommunity {
			break
		}
		p := child.Data
		if p.Stickied || strings.TrimSpace(p.Title) == "" {
			continue
		}

		rec := newRecord(name, fetchedAt, len(out), p.Title, model.SourceSocial, model.KindSocial)
		rec.Source = name
		switch {
		case p.Permalink != "":
			rec.URL = baseURL + p.Permalink
		default:
			rec.URL = p.URL
		}
		if p.CreatedUTC > 0 {
			rec.Timestamp = int64(p.CreatedUTC * 1000)
		}
		rec.Summary = truncate(strings.Join(strings.Fields(p.SelfText), " "), summaryLimit)
		rec.Tickers = Cashtags(rec.Headline, p.SelfText)

		out = append(out, rec)
	}
	return out
}
