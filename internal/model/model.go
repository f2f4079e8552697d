// Package model defines the domain types used across the application.
package model

// Kind separates editorial news from social chatter.
type Kind string

// Supported record kinds.
const (
	KindNews   Kind = "news"
	KindSocial Kind = "social"
)

// Category is the content category assigned to every record.
type Category string

// Supported categories.
const (
	CategoryMarkets         Category = "markets"
	CategoryCrypto          Category = "crypto"
	CategoryPolitics        Category = "politics"
	CategoryTech            Category = "tech"
	CategoryPersonalFinance Category = "personal-finance"
	CategoryEarnings        Category = "earnings"
	CategoryGeneral         Category = "general"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryMarkets,
		CategoryCrypto,
		CategoryPolitics,
		CategoryTech,
		CategoryPersonalFinance,
		CategoryEarnings,
		CategoryGeneral,
	}
}

// SourceType identifies a family of external sources and the adapter that serves it.
type SourceType string

// Supported source types.
const (
	SourceFeed     SourceType = "feed"
	SourceKeyedAPI SourceType = "keyed_api"
	SourceSocial   SourceType = "social"
)

// SourceTypes lists every source type in a stable order.
func SourceTypes() []SourceType {
	return []SourceType{SourceFeed, SourceKeyedAPI, SourceSocial}
}

// Record is one normalized headline flowing through the pipeline.
// Timestamp is milliseconds since the Unix epoch.
type Record struct {
	ID             string     `json:"id"`
	Headline       string     `json:"headline"`
	Source         string     `json:"source"`
	Timestamp      int64      `json:"timestamp"`
	URL            string     `json:"url,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	SentimentScore *float64   `json:"sentimentScore,omitempty"`
	Tickers        []string   `json:"tickers,omitempty"`
	Kind           Kind       `json:"kind"`
	OriginAdapter  SourceType `json:"originAdapter"`
	Category       Category   `json:"category"`
}

// SourceMetadata tracks refresh bookkeeping for one source type.
type SourceMetadata struct {
	LastRefreshAt          int64    `json:"lastRefreshAt"`
	RefreshIntervalMinutes int      `json:"refreshIntervalMinutes"`
	RecentErrors           []string `json:"recentErrors"`
	TotalFetchCount        int64    `json:"totalFetchCount"`
}

// State is the durable aggregate: records sorted newest first plus metadata per source type.
type State struct {
	Records  []Record
	Metadata map[SourceType]SourceMetadata
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.SentimentScore != nil {
		v := *r.SentimentScore
		r.SentimentScore = &v
	}
	if r.Tickers != nil {
		r.Tickers = append([]string(nil), r.Tickers...)
	}
	return r
}

// Clone returns a deep copy of the metadata.
func (m SourceMetadata) Clone() SourceMetadata {
	if m.RecentErrors != nil {
		m.RecentErrors = append([]string(nil), m.RecentErrors...)
	}
	return m
}

// CloneRecords deep-copies a record slice.
func CloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// CloneMetadata deep-copies a metadata map.
func CloneMetadata(in map[SourceType]SourceMetadata) map[SourceType]SourceMetadata {
	out := make(map[SourceType]SourceMetadata, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
