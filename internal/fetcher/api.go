package fetcher

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"headlines/internal/model"
)

// ItemsPerTopic caps how many articles are taken from each topic query.
const ItemsPerTopic = 10

// ErrNoAPIKey is reported when the keyed API has no key configured.
var ErrNoAPIKey = errors.New("api key not configured")

//go:embed news_sentiment.schema.json
var newsSentimentSchemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// APIConfig configures the keyed news API adapter.
type APIConfig struct {
	BaseURL string
	APIKey  string
	Topics  []string

	// RequestsPerMinute throttles outbound calls. Zero disables throttling.
	RequestsPerMinute int
}

// APIAdapter queries a keyed news-sentiment API once per configured topic.
type APIAdapter struct {
	getter  *getter
	cfg     APIConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewAPIAdapter creates an APIAdapter.
func NewAPIAdapter(client HTTPClient, cfg APIConfig) *APIAdapter {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	return &APIAdapter{
		getter:  &getter{client: client, breaker: NewBreaker(DefaultBreakerConfig("keyed-api"))},
		cfg:     cfg,
		limiter: limiter,
		now:     time.Now,
	}
}

// Type implements Adapter.
func (a *APIAdapter) Type() model.SourceType { return model.SourceKeyedAPI }

// Fetch implements Adapter.
func (a *APIAdapter) Fetch(ctx context.Context, timeout time.Duration) Result {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return Result{Errors: []string{ErrNoAPIKey.Error()}}
	}

	calls := make([]call, 0, len(a.cfg.Topics))
	for _, topic := range a.cfg.Topics {
		label := "news-api-" + topic
		calls = append(calls, call{
			label: label,
			run: func(ctx context.Context, fetchedAt time.Time) ([]model.Record, error) {
				if err := a.limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limit: %w", err)
				}
				body, err := a.getter.get(ctx, a.topicURL(topic))
				if err != nil {
					return nil, err
				}
				resp, err := DecodeNewsSentiment(body)
				if err != nil {
					return nil, err
				}
				return APIRecords(label, resp, fetchedAt), nil
			},
		})
	}
	return runCalls(ctx, timeout, a.now(), calls)
}

func (a *APIAdapter) topicURL(topic string) string {
	q := url.Values{}
	q.Set("function", "NEWS_SENTIMENT")
	q.Set("topics", topic)
	q.Set("sort", "LATEST")
	q.Set("limit", "50")
	q.Set("apikey", a.cfg.APIKey)
	return strings.TrimSuffix(a.cfg.BaseURL, "?") + "?" + q.Encode()
}

// NewsSentimentResponse is the payload of the news-sentiment endpoint.
type NewsSentimentResponse struct {
	Feed []NewsSentimentItem `json:"feed"`
}

// NewsSentimentItem is a single article of the news-sentiment payload.
type NewsSentimentItem struct {
	Title                 string            `json:"title"`
	URL                   string            `json:"url"`
	TimePublished         string            `json:"time_published"`
	Summary               string            `json:"summary"`
	Source                string            `json:"source"`
	OverallSentimentScore *float64          `json:"overall_sentiment_score"`
	TickerSentiment       []TickerSentiment `json:"ticker_sentiment"`
}

// TickerSentiment names a ticker an article relates to.
type TickerSentiment struct {
	Ticker string `json:"ticker"`
}

// DecodeNewsSentiment validates body against the embedded schema and decodes it.
// Quota and key errors, which the API reports with HTTP 200, become errors here.
func DecodeNewsSentiment(body []byte) (*NewsSentimentResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if obj, ok := value.(map[string]any); ok {
		for _, key := range []string{"Error Message", "Information", "Note"} {
			if msg, ok := obj[key].(string); ok {
				return nil, fmt.Errorf("api: %s", msg)
			}
		}
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	var resp NewsSentimentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &resp, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("news_sentiment.schema.json", strings.NewReader(newsSentimentSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("news_sentiment.schema.json")
	})
	return compiledSchema, schemaErr
}

// APIRecords normalizes at most ItemsPerTopic articles into records.
func APIRecords(label string, resp *NewsSentimentResponse, fetchedAt time.Time) []model.Record {
	var out []model.Record
	for _, item := range resp.Feed {
		if len(out) == ItemsPerTopic {
			break
		}
		if strings.TrimSpace(item.Title) == "" {
			continue
		}

		rec := newRecord(label, fetchedAt, len(out), item.Title, model.SourceKeyedAPI, model.KindNews)
		rec.Source = item.Source
		rec.URL = strings.TrimSpace(item.URL)
		rec.Summary = truncate(strings.Join(strings.Fields(item.Summary), " "), summaryLimit)
		if ts, ok := parsePublished(item.TimePublished); ok {
			rec.Timestamp = ts.UnixMilli()
		}
		if item.OverallSentimentScore != nil {
			v := *item.OverallSentimentScore
			rec.SentimentScore = &v
		}
		for _, ts := range item.TickerSentiment {
			rec.Tickers = append(rec.Tickers, ts.Ticker)
		}

		out = append(out, rec)
	}
	return out
}

func parsePublished(s string) (time.Time, bool) {
	for _, layout := range []string{"20060102T150405", "20060102T1504"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
