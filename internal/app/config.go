package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	ProviderTimeout time.Duration
	LogLevel        string
	LogFormat       string
	UserAgent       string

	AmazonEndpoint  string
	AmazonAPIKey    string
	WalmartEndpoint string
	WalmartAPIKey   string
	BestBuyEndpoint string
	BestBuyAPIKey   string
	TikTokEndpoint  string
	ShortsEndpoint  string
	ShortsAPIKey    string

	RedisURL           string
	SearchCacheTTL     time.Duration
	ShortVideoCacheTTL time.Duration
	CacheDisabled      bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 5)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:       getEnv("AGGREGATOR_USER_AGENT", "shopscout-aggregator/1.0"),

		AmazonEndpoint:  getEnv("PROVIDER_AMAZON_ENDPOINT", "https://api.rainforest-proxy.internal/search"),
		AmazonAPIKey:    strings.TrimSpace(os.Getenv("PROVIDER_AMAZON_API_KEY")),
		WalmartEndpoint: getEnv("PROVIDER_WALMART_ENDPOINT", "https://developer.api.walmart.com/api-proxy/service/affil/product/v2/search"),
		WalmartAPIKey:   strings.TrimSpace(os.Getenv("PROVIDER_WALMART_API_KEY")),
		BestBuyEndpoint: getEnv("PROVIDER_BESTBUY_ENDPOINT", "https://api.bestbuy.com/v1/products"),
		BestBuyAPIKey:   strings.TrimSpace(os.Getenv("PROVIDER_BESTBUY_API_KEY")),
		TikTokEndpoint:  getEnv("PROVIDER_TIKTOK_ENDPOINT", "https://open.tiktokapis.com/v2/research/video/query"),
		ShortsEndpoint:  getEnv("PROVIDER_SHORTS_ENDPOINT", "https://www.googleapis.com/youtube/v3/search"),
		ShortsAPIKey:    strings.TrimSpace(os.Getenv("PROVIDER_SHORTS_API_KEY")),

		RedisURL:           getEnv("REDIS_URL", ""),
		SearchCacheTTL:     time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 360)) * time.Minute,
		ShortVideoCacheTTL: time.Duration(getEnvInt("SHORTVIDEO_CACHE_TTL_MINUTES", 720)) * time.Minute,
		CacheDisabled:      getEnvBool("CACHE_DISABLED", false),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
