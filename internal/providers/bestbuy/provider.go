// Package bestbuy adapts the Best Buy products API. The review average is
// already on a 0-5 scale; availability is derived from the
// online-availability flag.
package bestbuy

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
	Products []apiProduct `json:"products"`
}

type apiProduct struct {
	SKU                   int64       `json:"sku"`
	Name                  string      `json:"name"`
	URL                   string      `json:"url"`
	Image                 string      `json:"image"`
	SalePrice             json.Number `json:"salePrice"`
	CustomerReviewAverage json.Number `json:"customerReviewAverage"`
	CustomerReviewCount   int         `json:"customerReviewCount"`
	LongDescription       string      `json:"longDescription"`
	Manufacturer          string      `json:"manufacturer"`
	ClassName             string      `json:"className"`
	OnlineAvailability    bool        `json:"onlineAvailability"`
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
	return string(domain.SourceBestBuy)
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Best Buy",
		Kind:    "marketplace",
		Enabled: true,
	}
}

func (p *Provider) Fetch(ctx context.Context, query, zipcode string) ([]domain.RawItem, error) {
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, common.Malformed(domain.SourceBestBuy, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("search", query)
	params.Set("format", "json")
	if zip := strings.TrimSpace(zipcode); zip != "" {
		params.Set("postalCode", zip)
	}
	if p.apiKey != "" {
		params.Set("apiKey", p.apiKey)
	}
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceBestBuy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, common.ClassifyStatus(domain.SourceBestBuy, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceBestBuy, err)
	}

	var parsed searchPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceBestBuy, err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Products))
	for _, product := range parsed.Products {
		sourceID := ""
		if product.SKU > 0 {
			sourceID = fmt.Sprintf("%d", product.SKU)
		}
		availability := "out_of_stock"
		if product.OnlineAvailability {
			availability = "in_stock"
		}
		rating, _ := product.CustomerReviewAverage.Float64()
		items = append(items, domain.RawItem{
			Source:       domain.SourceBestBuy,
			SourceID:     sourceID,
			Title:        product.Name,
			URL:          product.URL,
			ImageURL:     product.Image,
			PriceRaw:     product.SalePrice.String(),
			CurrencyRaw:  "USD",
			Rating:       rating,
			RatingScale:  5,
			ReviewCount:  product.CustomerReviewCount,
			Description:  product.LongDescription,
			Brand:        product.Manufacturer,
			Category:     product.ClassName,
			Availability: availability,
		})
	}
	return items, nil
}
