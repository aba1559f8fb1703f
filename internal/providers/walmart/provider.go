// Package walmart adapts the Walmart affiliate search API. Walmart reports
// ratings as a 0–100 percentage; the normalizer rescales them via the
// declared RatingScale.
package walmart

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
	Items []apiItem `json:"items"`
}

type apiItem struct {
	ItemID                int64       `json:"itemId"`
	Name                  string      `json:"name"`
	ProductURL            string      `json:"productUrl"`
	ThumbnailImage        string      `json:"thumbnailImage"`
	SalePrice             json.Number `json:"salePrice"`
	CurrencyCode          string      `json:"currencyCode"`
	CustomerRatingPercent json.Number `json:"customerRatingPercent"`
	NumReviews            int         `json:"numReviews"`
	ShortDescription      string      `json:"shortDescription"`
	BrandName             string      `json:"brandName"`
	CategoryPath          string      `json:"categoryPath"`
	Stock                 string      `json:"stock"`
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
	return string(domain.SourceWalmart)
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Walmart",
		Kind:    "marketplace",
		Enabled: true,
	}
}

func (p *Provider) Fetch(ctx context.Context, query, zipcode string) ([]domain.RawItem, error) {
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, common.Malformed(domain.SourceWalmart, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("query", query)
	if zip := strings.TrimSpace(zipcode); zip != "" {
		params.Set("zipCode", zip)
	}
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("WM_SEC.KEY", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceWalmart, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, common.ClassifyStatus(domain.SourceWalmart, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceWalmart, err)
	}

	var parsed searchPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceWalmart, err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		sourceID := ""
		if item.ItemID > 0 {
			sourceID = fmt.Sprintf("%d", item.ItemID)
		}
		rating, _ := item.CustomerRatingPercent.Float64()
		items = append(items, domain.RawItem{
			Source:       domain.SourceWalmart,
			SourceID:     sourceID,
			Title:        item.Name,
			URL:          item.ProductURL,
			ImageURL:     item.ThumbnailImage,
			PriceRaw:     item.SalePrice.String(),
			CurrencyRaw:  item.CurrencyCode,
			Rating:       rating,
			RatingScale:  100,
			ReviewCount:  item.NumReviews,
			Description:  item.ShortDescription,
			Brand:        item.BrandName,
			Category:     item.CategoryPath,
			Availability: item.Stock,
		})
	}
	return items, nil
}
