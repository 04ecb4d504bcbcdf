package redis

// Package redis provides Redis-based adapters for the reportgen system.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
)

const (
	defaultPlaceholderPrefix = "report:placeholder:"
	defaultPlaceholderTTL    = 15 * time.Minute

	// scanPageSize bounds how many keys a single SCAN page returns.
	scanPageSize = 100
)

// PlaceholderStore is a Redis-backed placeholder store for production use.
// Entries are keyed by owner and report id and expire through Redis TTL, so
// PurgeExpired has nothing to do here.
type PlaceholderStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// PlaceholderStoreConfig groups constructor options for the Redis store.
type PlaceholderStoreConfig struct {
	Prefix string        // key prefix; defaults to "report:placeholder:"
	TTL    time.Duration // per-entry lifetime; defaults to 15m
}

// NewPlaceholderStore creates a new Redis-based placeholder store.
func NewPlaceholderStore(client redis.UniversalClient, cfg PlaceholderStoreConfig) *PlaceholderStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPlaceholderPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultPlaceholderTTL
	}
	return &PlaceholderStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Put stores or refreshes the placeholder record, restarting its TTL.
func (s *PlaceholderStore) Put(ctx context.Context, rec *model.Report) error {
	if rec == nil || rec.ID == "" {
		return errors.New("placeholder id cannot be empty")
	}
	if rec.OwnerID == "" {
		return errors.New("placeholder owner cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal placeholder: %w", err)
	}

	return s.client.Set(ctx, s.key(rec.OwnerID, rec.ID), data, s.ttl).Err()
}

// Get returns the placeholder for the owner and id, or
// core.ErrPlaceholderNotFound when no live entry exists.
func (s *PlaceholderStore) Get(ctx context.Context, ownerID, id string) (*model.Report, error) {
	if ownerID == "" || id == "" {
		return nil, core.ErrPlaceholderNotFound
	}

	data, err := s.client.Get(ctx, s.key(ownerID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrPlaceholderNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec model.Report
	if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal placeholder: %w", unmarshalErr)
	}
	return &rec, nil
}

// ListByOwner returns every live placeholder for the owner, newest first.
func (s *PlaceholderStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.Report, error) {
	if ownerID == "" {
		return nil, nil
	}

	keys, err := s.ownerKeys(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	records := make([]*model.Report, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var rec model.Report
		if unmarshalErr := json.Unmarshal([]byte(raw), &rec); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal placeholder: %w", unmarshalErr)
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Delete removes the placeholder for the owner and id. Deleting an absent
// entry is not an error.
func (s *PlaceholderStore) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" || id == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(ownerID, id)).Err()
}

// DeleteByOwner removes every placeholder for the owner and reports how many
// entries were dropped.
func (s *PlaceholderStore) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}

	keys, err := s.ownerKeys(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(deleted), nil
}

// PurgeExpired is a no-op: Redis drops expired keys on its own.
func (s *PlaceholderStore) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

func (s *PlaceholderStore) key(ownerID, id string) string {
	return s.prefix + ownerID + ":" + id
}

// ownerKeys walks SCAN pages for the owner's key pattern.
func (s *PlaceholderStore) ownerKeys(ctx context.Context, ownerID string) ([]string, error) {
	pattern := s.prefix + ownerID + ":*"

	var keys []string
	var cursor uint64
	for {
		page, next, err := s.client.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
