package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/your-org/facecheck/internal/config"
	"github.com/your-org/facecheck/internal/models"
)

const (
	galleryAllKey    = "gallery:all"
	galleryKeyPrefix = "gallery:identity:"
)

// cachedRecord is the Redis wire form of an enrollment record. It
// exists because the API form of EnrollmentRecord deliberately omits
// the embedding from JSON; the cache must keep it.
type cachedRecord struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	Embedding  []float64 `json:"embedding"`
	SourceKey  string    `json:"source_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// GalleryCache is a read-through TTL cache for enrollment galleries.
// Misses and Redis failures both fall back to the database; the cache
// never changes what the caller sees, only how fast.
type GalleryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGalleryCache(cfg config.RedisConfig) (*GalleryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &GalleryCache{client: client, ttl: cfg.TTL}, nil
}

// GetAll returns the cached full gallery, or ok=false on miss or error.
func (c *GalleryCache) GetAll(ctx context.Context) ([]models.EnrollmentRecord, bool) {
	return c.get(ctx, galleryAllKey)
}

// SetAll stores the full gallery with the configured TTL.
func (c *GalleryCache) SetAll(ctx context.Context, records []models.EnrollmentRecord) {
	c.set(ctx, galleryAllKey, records)
}

// GetForIdentity returns one identity's cached records, or ok=false.
func (c *GalleryCache) GetForIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, bool) {
	return c.get(ctx, galleryKeyPrefix+identityID.String())
}

// SetForIdentity stores one identity's records with the configured TTL.
func (c *GalleryCache) SetForIdentity(ctx context.Context, identityID uuid.UUID, records []models.EnrollmentRecord) {
	c.set(ctx, galleryKeyPrefix+identityID.String(), records)
}

// Invalidate drops the full-gallery entry and the given identity's
// entry after an enrollment write.
func (c *GalleryCache) Invalidate(ctx context.Context, identityID uuid.UUID) {
	if err := c.client.Del(ctx, galleryAllKey, galleryKeyPrefix+identityID.String()).Err(); err != nil {
		slog.Warn("invalidate gallery cache", "error", err)
	}
}

func (c *GalleryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *GalleryCache) Close() error {
	return c.client.Close()
}

func (c *GalleryCache) get(ctx context.Context, key string) ([]models.EnrollmentRecord, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("gallery cache read", "key", key, "error", err)
		}
		return nil, false
	}

	var cached []cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		slog.Warn("gallery cache decode", "key", key, "error", err)
		return nil, false
	}

	records := make([]models.EnrollmentRecord, len(cached))
	for i, cr := range cached {
		records[i] = models.EnrollmentRecord{
			ID:         cr.ID,
			IdentityID: cr.IdentityID,
			Embedding:  cr.Embedding,
			SourceKey:  cr.SourceKey,
			CreatedAt:  cr.CreatedAt,
		}
	}
	return records, true
}

func (c *GalleryCache) set(ctx context.Context, key string, records []models.EnrollmentRecord) {
	cached := make([]cachedRecord, len(records))
	for i, rec := range records {
		cached[i] = cachedRecord{
			ID:         rec.ID,
			IdentityID: rec.IdentityID,
			Embedding:  rec.Embedding,
			SourceKey:  rec.SourceKey,
			CreatedAt:  rec.CreatedAt,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		slog.Warn("gallery cache encode", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("gallery cache write", "key", key, "error", err)
	}
}
