package aggregate

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"shopscout/aggregatorservice/internal/domain"
)

const defaultAvailability = "unknown"

// NormalizeQuery trims, lowercases and collapses whitespace so that queries
// differing only in case or spacing share one cache key.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// NormalizeItems converts one provider's raw response into canonical items.
// Unusable items are dropped, and a sourceId returned twice in the same
// response keeps only its first occurrence.
func NormalizeItems(raw []domain.RawItem) []domain.CanonicalItem {
	items := make([]domain.CanonicalItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		item, ok := NormalizeItem(r)
		if !ok {
			continue
		}
		key := item.ProductID()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return items
}

// NormalizeItem maps a provider-shaped item onto the canonical shape.
// Items without a non-empty title, or with neither a sourceId nor a URL,
// carry no usable identity and are rejected.
func NormalizeItem(raw domain.RawItem) (domain.CanonicalItem, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return domain.CanonicalItem{}, false
	}
	sourceID := strings.TrimSpace(raw.SourceID)
	url := strings.TrimSpace(raw.URL)
	if sourceID == "" && url == "" {
		return domain.CanonicalItem{}, false
	}
	if sourceID == "" {
		// The URL stands in for the provider-native id.
		sourceID = url
	}

	reviewCount := raw.ReviewCount
	if reviewCount < 0 {
		reviewCount = 0
	}
	availability := strings.ToLower(strings.TrimSpace(raw.Availability))
	if availability == "" {
		availability = defaultAvailability
	}

	return domain.CanonicalItem{
		Source:       raw.Source,
		SourceID:     sourceID,
		Title:        title,
		URL:          url,
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		Price:        normalizePrice(raw.PriceRaw, raw.CurrencyRaw),
		Rating:       normalizeRating(raw.Rating, raw.RatingScale),
		ReviewCount:  reviewCount,
		Description:  strings.TrimSpace(raw.Description),
		Brand:        strings.TrimSpace(raw.Brand),
		Category:     strings.TrimSpace(raw.Category),
		Availability: availability,
	}, true
}

// normalizeRating rescales a provider rating onto the common 0–5 scale with
// one decimal place. A missing scale is assumed to already be 0–5.
func normalizeRating(value, scale float64) float64 {
	if scale <= 0 {
		scale = 5
	}
	rating := value / scale * 5
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return math.Round(rating*10) / 10
}

// normalizePrice parses the raw amount and normalizes the currency tag to an
// ISO 4217 code. Amounts are never converted; the provider's original tag is
// kept in RawCurrency.
func normalizePrice(amountRaw, currencyRaw string) domain.Money {
	cleaned := strings.TrimSpace(amountRaw)
	cleaned = strings.TrimLeft(cleaned, "$€£¥ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return domain.Money{}
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsNegative() {
		return domain.Money{}
	}
	return domain.Money{
		Amount:      amount,
		Currency:    normalizeCurrencyTag(currencyRaw),
		RawCurrency: strings.TrimSpace(currencyRaw),
	}
}

func normalizeCurrencyTag(raw string) string {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch value {
	case "", "$", "US$", "USD$":
		return currency.USD.String()
	case "€":
		return currency.EUR.String()
	case "£":
		return currency.GBP.String()
	}
	if unit, err := currency.ParseISO(value); err == nil {
		return unit.String()
	}
	return currency.USD.String()
}
