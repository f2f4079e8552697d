package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources lists the external sources each adapter reads.
type Sources struct {
	Feeds   []FeedSource  `yaml:"feeds"`
	NewsAPI NewsAPISource `yaml:"news_api"`
	Social  SocialSource  `yaml:"social"`
}

// FeedSource is one RSS/Atom feed.
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// NewsAPISource configures the keyed news API. The key itself comes from
// the environment.
type NewsAPISource struct {
	BaseURL           string   `yaml:"base_url"`
	Topics            []string `yaml:"topics"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

// SocialSource configures the social adapter.
type SocialSource struct {
	BaseURL    string   `yaml:"base_url"`
	Subreddits []string `yaml:"subreddits"`
}

// DefaultSources returns the built-in source lists.
func DefaultSources() Sources {
	return Sources{
		Feeds: []FeedSource{
			{Name: "CNBC Top News", URL: "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114"},
			{Name: "MarketWatch", URL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
			{Name: "Yahoo Finance", URL: "https://finance.yahoo.com/news/rssindex"},
			{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/"},
		},
		NewsAPI: NewsAPISource{
			BaseURL:           "https://www.alphavantage.co/query",
			Topics:            []string{"financial_markets", "economy_macro", "earnings", "technology"},
			RequestsPerMinute: 5,
		},
		Social: SocialSource{
			BaseURL:    "https://www.reddit.com",
			Subreddits: []string{"stocks", "investing", "wallstreetbets", "personalfinance"},
		},
	}
}

// LoadSources reads the sources file at path. Sections missing from the
// file keep their defaults; a missing file means all defaults.
func LoadSources(path string) (Sources, error) {
	src := DefaultSources()
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted configuration
	if errors.Is(err, fs.ErrNotExist) {
		return src, nil
	}
	if err != nil {
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}

	if err := yaml.Unmarshal(data, &src); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}
	if err := src.Validate(); err != nil {
		return Sources{}, fmt.Errorf("validate sources file: %w", err)
	}
	return src, nil
}

// Validate checks names and URLs.
func (s Sources) Validate() error {
	names := make(map[string]bool, len(s.Feeds))
	for i, f := range s.Feeds {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("feeds[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("feeds[%d]: duplicate name %q", i, name)
		}
		names[name] = true
		if err := checkURL(f.URL); err != nil {
			return fmt.Errorf("feeds[%d] %q: %w", i, name, err)
		}
	}

	if err := checkURL(s.NewsAPI.BaseURL); err != nil {
		return fmt.Errorf("news_api.base_url: %w", err)
	}
	if s.NewsAPI.RequestsPerMinute < 0 {
		return fmt.Errorf("news_api.requests_per_minute must not be negative")
	}
	for i, topic := range s.NewsAPI.Topics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("news_api.topics[%d]: empty topic", i)
		}
	}

	if err := checkURL(s.Social.BaseURL); err != nil {
		return fmt.Errorf("social.base_url: %w", err)
	}
	for i, sub := range s.Social.Subreddits {
		if strings.TrimSpace(strings.TrimPrefix(sub, "r/")) == "" {
			return fmt.Errorf("social.subreddits[%d]: empty subreddit", i)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
