package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies an external data provider. Item identity is always
// scoped to a source: two providers never share a (source, sourceId) pair.
type Source string

const (
	SourceAmazon  Source = "amazon"
	SourceWalmart Source = "walmart"
	SourceBestBuy Source = "bestbuy"
	SourceTikTok  Source = "tiktok"
	SourceShorts  Source = "shorts"
)

// Money carries a price with its ISO 4217 currency tag. Amounts are never
// converted between currencies; RawCurrency preserves whatever tag the
// provider sent before normalization.
type Money struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	RawCurrency string          `json:"rawCurrency,omitempty"`
}

func (m Money) IsZero() bool {
	return m.Currency == "" && m.Amount.IsZero()
}

// RawItem is a provider's answer before normalization. Price and rating stay
// in the provider's own representation; RatingScale declares the maximum of
// the provider's rating range (5, 10, 100, ...).
type RawItem struct {
	Source       Source
	SourceID     string
	Title        string
	URL          string
	ImageURL     string
	PriceRaw     string
	CurrencyRaw  string
	Rating       float64
	RatingScale  float64
	ReviewCount  int
	Description  string
	Brand        string
	Category     string
	Availability string
}

// CanonicalItem is the normalized product entity used throughout the core.
type CanonicalItem struct {
	Source       Source  `json:"source"`
	SourceID     string  `json:"sourceId"`
	Title        string  `json:"title"`
	URL          string  `json:"url,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Price        Money   `json:"price,omitempty"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"reviewCount"`
	Description  string  `json:"description,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Category     string  `json:"category,omitempty"`
	Availability string  `json:"availability"`
}

// ProductID returns the composite identifier used by the store and the HTTP
// surface: "<source>:<sourceId>".
func (c CanonicalItem) ProductID() string {
	return string(c.Source) + ":" + c.SourceID
}

// SplitProductID is the inverse of CanonicalItem.ProductID.
func SplitProductID(id string) (Source, string, bool) {
	source, sourceID, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok || source == "" || sourceID == "" {
		return "", "", false
	}
	return Source(source), sourceID, true
}

// ReviewItem is a single product review. (ProductID, Source, SourceReviewID)
// is unique so repeated fetches never re-ingest the same review.
type ReviewItem struct {
	ProductID      string     `json:"productId"`
	Source         Source     `json:"source"`
	SourceReviewID string     `json:"sourceReviewId"`
	Author         string     `json:"author,omitempty"`
	Rating         float64    `json:"rating"`
	Title          string     `json:"title,omitempty"`
	Body           string     `json:"body,omitempty"`
	PostedAt       *time.Time `json:"postedAt,omitempty"`
}

// VideoItem is a long-form video attached to a product, unique per
// (ProductID, VideoID).
type VideoItem struct {
	ProductID string `json:"productId"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	Creator   string `json:"creator,omitempty"`
}

// ShortVideoItem is a short-form video review from a video platform.
type ShortVideoItem struct {
	Source      Source     `json:"source"`
	VideoID     string     `json:"videoId"`
	ProductID   string     `json:"productId,omitempty"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	Creator     string     `json:"creator,omitempty"`
	Views       int64      `json:"views"`
	Likes       int64      `json:"likes"`
	DurationSec int        `json:"durationSec,omitempty"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
}

// SearchRequest is a caller query against the aggregator.
type SearchRequest struct {
	Query   string
	Zipcode string
	Limit   int
	NoCache bool
}

// ProviderStatus reports one provider's contribution to a search response.
type ProviderStatus struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Count  int    `json:"count"`
	Cached bool   `json:"cached,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SearchResponse is the merged, sorted, truncated answer for one query.
// TotalCount is the size of the merged set before truncation; Degraded is
// set when at least one provider failed to contribute.
type SearchResponse struct {
	Query      string           `json:"query"`
	Items      []CanonicalItem  `json:"items"`
	Providers  []ProviderStatus `json:"providers"`
	TotalCount int              `json:"totalCount"`
	Degraded   bool             `json:"degraded"`
	ElapsedMS  int64            `json:"elapsedMs"`
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// ProviderDiagnostics is the health surface for one provider.
type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
}

// CacheStats exposes the short-video cache hit/miss counters. Counters are
// process-wide and reset only on restart.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}
