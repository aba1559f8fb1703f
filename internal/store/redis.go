package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"shopscout/aggregatorservice/internal/domain"
)

const (
	productKeyPrefix   = "shopscout:product:"
	reviewListPrefix   = "shopscout:reviews:"
	reviewIDSetPrefix  = "shopscout:reviews:ids:"
	videoListPrefix    = "shopscout:videos:"
	videoIDSetPrefix   = "shopscout:videos:ids:"
	maxReviewsReturned = 200
)

// Redis persists canonical records in Redis. Products are plain JSON values
// keyed by (source, sourceId); review and video uniqueness rides on a set of
// ingested ids per product, so a re-fetch adds nothing.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func productKey(source domain.Source, sourceID string) string {
	return productKeyPrefix + string(source) + ":" + sourceID
}

func (r *Redis) UpsertItems(ctx context.Context, items []domain.CanonicalItem) error {
	if len(items) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, item := range items {
		if strings.TrimSpace(item.SourceID) == "" {
			continue
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", item.ProductID(), err)
		}
		pipe.Set(ctx, productKey(item.Source, item.SourceID), data, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) GetProduct(ctx context.Context, source domain.Source, sourceID string) (domain.CanonicalItem, error) {
	data, err := r.client.Get(ctx, productKey(source, sourceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.CanonicalItem{}, domain.ErrNotFound
		}
		return domain.CanonicalItem{}, err
	}
	var item domain.CanonicalItem
	if err := json.Unmarshal(data, &item); err != nil {
		return domain.CanonicalItem{}, err
	}
	return item, nil
}

func (r *Redis) UpsertReviews(ctx context.Context, reviews []domain.ReviewItem) (int, error) {
	inserted := 0
	for _, review := range reviews {
		if review.ProductID == "" || strings.TrimSpace(review.SourceReviewID) == "" {
			continue
		}
		member := string(review.Source) + ":" + review.SourceReviewID
		added, err := r.client.SAdd(ctx, reviewIDSetPrefix+review.ProductID, member).Result()
		if err != nil {
			return inserted, err
		}
		if added == 0 {
			continue
		}
		data, err := json.Marshal(review)
		if err != nil {
			return inserted, err
		}
		if err := r.client.RPush(ctx, reviewListPrefix+review.ProductID, data).Err(); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (r *Redis) ListReviews(ctx context.Context, productID string) ([]domain.ReviewItem, error) {
	rows, err := r.client.LRange(ctx, reviewListPrefix+productID, 0, maxReviewsReturned-1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	reviews := make([]domain.ReviewItem, 0, len(rows))
	for _, row := range rows {
		var review domain.ReviewItem
		if err := json.Unmarshal([]byte(row), &review); err != nil {
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

func (r *Redis) UpsertVideos(ctx context.Context, videos []domain.VideoItem) (int, error) {
	inserted := 0
	for _, video := range videos {
		if video.ProductID == "" || strings.TrimSpace(video.VideoID) == "" {
			continue
		}
		added, err := r.client.SAdd(ctx, videoIDSetPrefix+video.ProductID, video.VideoID).Result()
		if err != nil {
			return inserted, err
		}
		if added == 0 {
			continue
		}
		data, err := json.Marshal(video)
		if err != nil {
			return inserted, err
		}
		if err := r.client.RPush(ctx, videoListPrefix+video.ProductID, data).Err(); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (r *Redis) ListVideos(ctx context.Context, productID string) ([]domain.VideoItem, error) {
	rows, err := r.client.LRange(ctx, videoListPrefix+productID, 0, maxReviewsReturned-1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	videos := make([]domain.VideoItem, 0, len(rows))
	for _, row := range rows {
		var video domain.VideoItem
		if err := json.Unmarshal([]byte(row), &video); err != nil {
			continue
		}
		videos = append(videos, video)
	}
	return videos, nil
}
