// Package tiktok adapts a TikTok video search API to the short-video
// provider contract.
package tiktok

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
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

type searchPayload struct {
	Videos []apiVideo `json:"videos"`
}

type apiVideo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ShareURL   string `json:"share_url"`
	Author     string `json:"author"`
	ViewCount  int64  `json:"view_count"`
	LikeCount  int64  `json:"like_count"`
	Duration   int    `json:"duration"`
	CreateTime string `json:"create_time"`
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
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return string(domain.SourceTikTok)
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "TikTok",
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
		return nil, common.Malformed(domain.SourceTikTok, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := uri.Query()
	params.Set("keyword", keyword+" review")
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceTikTok, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, common.ClassifyStatus(domain.SourceTikTok, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ClassifyTransport(domain.SourceTikTok, err)
	}

	var parsed searchPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Malformed(domain.SourceTikTok, err)
	}

	videos := make([]domain.ShortVideoItem, 0, len(parsed.Videos))
	for _, video := range parsed.Videos {
		id := strings.TrimSpace(video.ID)
		if id == "" {
			continue
		}
		videos = append(videos, domain.ShortVideoItem{
			Source:      domain.SourceTikTok,
			VideoID:     id,
			ProductID:   productID,
			Title:       strings.TrimSpace(video.Title),
			URL:         strings.TrimSpace(video.ShareURL),
			Creator:     strings.TrimSpace(video.Author),
			Views:       video.ViewCount,
			Likes:       video.LikeCount,
			DurationSec: video.Duration,
			PostedAt:    common.ParseUnixTS(video.CreateTime),
		})
	}
	return videos, nil
}
