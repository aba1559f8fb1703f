// Package amazon adapts an Amazon product search API (via a Rainforest-style
// proxy) to the aggregator's provider contract.
package amazon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"shopscout/aggregatorservice/internal/domain"
	"shopscout/aggregatorservice/internal/providers/common"
)

const (
	defaultUserAgent = "shopscout-aggregator/1.0"
	maxBodyBytes     = 4 * 1024 * 1024
)

type Config struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	userAgent string
}

type searchPayload struct {
	Results []apiItem `json:"results"`
}

type apiItem struct {
	ASIN         string   `json:"asin"`
	Title        string   `json:"title"`
	Link         string   `json:"link"`
	Image        string   `json:"image"`
	Price        apiPrice `json:"price"`
	Rating       float64  `json:"rating"`
	RatingsTotal int      `json:"ratings_total"`
	Brand        string   `json:"brand"`
	Category     string   `json:"category"`
	Availability string   `json:"availability"`
	Description  string   `json:"description"`
}

type apiPrice struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

type reviewsPayload struct {
	Reviews []apiReview `json:"reviews"`
}

type apiReview struct {
	ID     string  `json:"id"`
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Date   string  `json:"date"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		endpoint:  strings.TrimSpace(cfg.Endpoint),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return string(domain.SourceAmazon)
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Amazon",
		Kind:    "marketplace",
		Enabled: true,
	}
}

func (p *Provider) Fetch(ctx context.Context, query, zipcode string) ([]domain.RawItem, error) {
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, common.Malformed(domain.SourceAmazon, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("type", "search")
	params.Set("search_term", query)
	if zip := strings.TrimSpace(zipcode); zip != "" {
		params.Set("zip_code", zip)
	}
	uri.RawQuery = params.Encode()

	payload, err := p.getJSON(ctx, uri.String())
	if err != nil {
		return nil, err
	}

	var parsed searchPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceAmazon, err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		items = append(items, domain.RawItem{
			Source:       domain.SourceAmazon,
			SourceID:     strings.TrimSpace(item.ASIN),
			Title:        item.Title,
			URL:          item.Link,
			ImageURL:     item.Image,
			PriceRaw:     item.Price.Value.String(),
			CurrencyRaw:  item.Price.Currency,
			Rating:       item.Rating,
			RatingScale:  5,
			ReviewCount:  item.RatingsTotal,
			Description:  item.Description,
			Brand:        item.Brand,
			Category:     item.Category,
			Availability: item.Availability,
		})
	}
	return items, nil
}

// FetchReviews lists reviews for one ASIN. Implements the aggregator's
// optional ReviewFetcher capability.
func (p *Provider) FetchReviews(ctx context.Context, sourceID string) ([]domain.ReviewItem, error) {
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, common.Malformed(domain.SourceAmazon, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("type", "reviews")
	params.Set("asin", strings.TrimSpace(sourceID))
	uri.RawQuery = params.Encode()

	payload, err := p.getJSON(ctx, uri.String())
	if err != nil {
		return nil, err
	}

	var parsed reviewsPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceAmazon, err)
	}

	reviews := make([]domain.ReviewItem, 0, len(parsed.Reviews))
	for _, review := range parsed.Reviews {
		id := strings.TrimSpace(review.ID)
		if id == "" {
			continue
		}
		reviews = append(reviews, domain.ReviewItem{
			Source:         domain.SourceAmazon,
			SourceReviewID: id,
			Author:         strings.TrimSpace(review.Author),
			Rating:         review.Rating,
			Title:          strings.TrimSpace(review.Title),
			Body:           strings.TrimSpace(review.Body),
			PostedAt:       common.ParseUnixTS(review.Date),
		})
	}
	return reviews, nil
}

func (p *Provider) getJSON(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceAmazon, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, common.ClassifyStatus(domain.SourceAmazon, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceAmazon, err)
	}
	return payload, nil
}
