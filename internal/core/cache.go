package core

import (
	"context"
	"encoding/json"
	"time"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ContentCacheService serves completed report content through a cache with a
// persisted fallback. Ownership is checked by callers against the report row
// before content is fetched; content keys carry only the report id.
type ContentCacheService struct {
	cache    CacheRepository
	contents ContentRepository
	ttl      time.Duration
}

// ContentCacheConfig holds configuration for content caching.
type ContentCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// ContentCacheServiceOptions bundles dependencies for NewContentCacheService.
type ContentCacheServiceOptions struct {
	Cache    CacheRepository
	Contents ContentRepository
	Config   ContentCacheConfig
}

// DefaultContentCacheConfig returns a ContentCacheConfig with sensible defaults.
func DefaultContentCacheConfig() ContentCacheConfig {
	return ContentCacheConfig{
		TTL: 30 * time.Minute,
	}
}

// NewContentCacheService creates a new ContentCacheService. The cache may be
// nil, in which case every read falls through to the persisted store.
func NewContentCacheService(opts ContentCacheServiceOptions) *ContentCacheService {
	return &ContentCacheService{
		cache:    opts.Cache,
		contents: opts.Contents,
		ttl:      opts.Config.TTL,
	}
}

// StoreContent caches freshly completed content. Failures are returned for
// logging only; the persisted row remains authoritative.
func (s *ContentCacheService) StoreContent(ctx context.Context, reportID string, content json.RawMessage) error {
	if s.cache == nil || reportID == "" || len(content) == 0 {
		return nil
	}
	return s.cache.Set(ctx, contentKey(reportID), content, s.ttl)
}

// GetContent returns the content for a completed report, consulting the
// cache first and re-priming it on a persisted-store hit.
func (s *ContentCacheService) GetContent(ctx context.Context, reportID string) (json.RawMessage, error) {
	if reportID == "" {
		return nil, nil
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, contentKey(reportID))
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	content, err := s.contents.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(content) > 0 {
		// Re-prime is best-effort; a miss next time just refetches.
		_ = s.cache.Set(ctx, contentKey(reportID), content, s.ttl)
	}
	return content, nil
}

// InvalidateContent removes cached content for a report id. Called on delete;
// TTL bounds anything missed.
func (s *ContentCacheService) InvalidateContent(ctx context.Context, reportID string) error {
	if s.cache == nil || reportID == "" {
		return nil
	}
	_, err := s.cache.Delete(ctx, contentKey(reportID))
	return err
}

// contentKey generates the cache key for report content.
func contentKey(reportID string) string {
	return "report:content:" + reportID
}
