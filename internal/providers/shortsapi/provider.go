// Package shortsapi adapts a YouTube Shorts search proxy to the short-video
// provider contract.
package shortsapi

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
	maxBodyBytes     = 2 * 1024 * 1024
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
	Items []apiVideo `json:"items"`
}

type apiVideo struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Channel     string `json:"channel"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	DurationSec int    `json:"durationSec"`
	PublishedAt string `json:"publishedAt"`
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
	return string(domain.SourceShorts)
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "YouTube Shorts",
		Kind:    "video",
		Enabled: true,
	}
}

func (p *Provider) FetchVideos(ctx context.Context, productID, titleHint string) ([]domain.ShortVideoItem, error) {
	keyword := strings.TrimSpace(titleHint)
	if keyword == "" {
		keyword = strings.TrimSpace(productID)
	}

	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, common.Malformed(domain.SourceShorts, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("q", keyword+" review")
	params.Set("type", "shorts")
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
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
		return nil, common.ClassifyTransport(domain.SourceShorts, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, common.ClassifyStatus(domain.SourceShorts, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceShorts, err)
	}

	var parsed searchPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceShorts, err)
	}

	videos := make([]domain.ShortVideoItem, 0, len(parsed.Items))
	for _, video := range parsed.Items {
		id := strings.TrimSpace(video.VideoID)
		if id == "" {
			continue
		}
		videos = append(videos, domain.ShortVideoItem{
			Source:      domain.SourceShorts,
			VideoID:     id,
			ProductID:   productID,
			Title:       strings.TrimSpace(video.Title),
			URL:         strings.TrimSpace(video.URL),
			Creator:     strings.TrimSpace(video.Channel),
			Views:       video.Views,
			Likes:       video.Likes,
			DurationSec: video.DurationSec,
		})
	}
	return videos, nil
}
