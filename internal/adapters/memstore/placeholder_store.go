// Package memstore provides an in-memory placeholder store for development
// and tests, bounded by LRU capacity and per-entry TTL.
package memstore

import (
	"container/list"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reportable/reportgen/internal/core"
	"github.com/reportable/reportgen/internal/domain/model"
)

// PlaceholderStore is a small in-memory LRU store with per-entry TTL.
// It stands in for the Redis store when no Redis is configured.
// Concurrency: methods are safe for concurrent use.
type PlaceholderStore struct {
	mu     sync.Mutex
	cap    int
	ttl    time.Duration
	ll     *list.List               // front = most-recently used
	items  map[string]*list.Element // composite key -> element
	now    func() time.Time         // injectable clock for tests
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type placeholderEntry struct {
	ownerID string
	id      string
	record  model.Report
	expiry  time.Time // zero means no expiry
}

// PlaceholderStoreConfig groups constructor options.
type PlaceholderStoreConfig struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
}

// DefaultPlaceholderStoreConfig returns sensible defaults.
func DefaultPlaceholderStoreConfig() PlaceholderStoreConfig {
	return PlaceholderStoreConfig{Capacity: 1024, TTL: 15 * time.Minute, Now: time.Now}
}

// NewPlaceholderStore creates a new in-memory store with the given config.
func NewPlaceholderStore(cfg PlaceholderStoreConfig) *PlaceholderStore {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1024
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &PlaceholderStore{
		cap:   capacity,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
		now:   nowFn,
	}
}

// Put inserts or refreshes the record, restarting its TTL and marking it
// most-recently used. The record is copied; later caller mutations are not
// reflected in the store.
func (s *PlaceholderStore) Put(_ context.Context, rec *model.Report) error {
	if rec == nil || rec.ID == "" {
		return errors.New("placeholder id cannot be empty")
	}
	if rec.OwnerID == "" {
		return errors.New("placeholder owner cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry := s.now().Add(s.ttl)
	key := compositeKey(rec.OwnerID, rec.ID)

	if el, found := s.items[key]; found {
		ent := el.Value.(*placeholderEntry)
		ent.record = *rec
		ent.expiry = expiry
		s.ll.MoveToFront(el)
		return nil
	}

	el := s.ll.PushFront(&placeholderEntry{
		ownerID: rec.OwnerID,
		id:      rec.ID,
		record:  *rec,
		expiry:  expiry,
	})
	s.items[key] = el
	s.evictIfNeeded()
	return nil
}

// Get returns a copy of the record for the owner and id, or
// core.ErrPlaceholderNotFound when absent or expired.
func (s *PlaceholderStore) Get(_ context.Context, ownerID, id string) (*model.Report, error) {
	if ownerID == "" || id == "" {
		return nil, core.ErrPlaceholderNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, found := s.items[compositeKey(ownerID, id)]
	if !found {
		s.misses.Add(1)
		return nil, core.ErrPlaceholderNotFound
	}
	ent := el.Value.(*placeholderEntry)
	if s.isExpired(ent) {
		s.removeElement(el)
		s.misses.Add(1)
		return nil, core.ErrPlaceholderNotFound
	}
	s.ll.MoveToFront(el)
	s.hits.Add(1)

	cp := ent.record
	return &cp, nil
}

// ListByOwner returns copies of every live record for the owner, newest
// first by CreatedAt.
func (s *PlaceholderStore) ListByOwner(_ context.Context, ownerID string) ([]*model.Report, error) {
	if ownerID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*model.Report
	var expired []*list.Element
	for el := s.ll.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*placeholderEntry)
		if ent.ownerID != ownerID {
			continue
		}
		if s.isExpired(ent) {
			expired = append(expired, el)
			continue
		}
		cp := ent.record
		records = append(records, &cp)
	}
	for _, el := range expired {
		s.removeElement(el)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Delete removes the record for the owner and id if present.
func (s *PlaceholderStore) Delete(_ context.Context, ownerID, id string) error {
	if ownerID == "" || id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, found := s.items[compositeKey(ownerID, id)]; found {
		s.removeElement(el)
	}
	return nil
}

// DeleteByOwner removes every record for the owner and reports how many live
// entries were dropped.
func (s *PlaceholderStore) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*list.Element
	count := 0
	for el := s.ll.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*placeholderEntry)
		if ent.ownerID != ownerID {
			continue
		}
		if !s.isExpired(ent) {
			count++
		}
		matched = append(matched, el)
	}
	for _, el := range matched {
		s.removeElement(el)
	}
	return count, nil
}

// PurgeExpired drops entries past their TTL and reports how many.
func (s *PlaceholderStore) PurgeExpired(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*list.Element
	for el := s.ll.Front(); el != nil; el = el.Next() {
		if s.isExpired(el.Value.(*placeholderEntry)) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		s.removeElement(el)
	}
	return len(expired), nil
}

// Len returns the current number of entries, expired ones included.
func (s *PlaceholderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// PlaceholderStoreStats are simple counters for observability.
type PlaceholderStoreStats struct {
	Hits, Misses, Evictions uint64
	Size, Capacity          int
}

// Stats returns a snapshot of counters and sizes.
func (s *PlaceholderStore) Stats() PlaceholderStoreStats {
	return PlaceholderStoreStats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evicts.Load(),
		Size:      s.Len(),
		Capacity:  s.cap,
	}
}

// Helpers (caller must hold s.mu).

func (s *PlaceholderStore) isExpired(e *placeholderEntry) bool {
	if e.expiry.IsZero() {
		return false
	}
	return s.now().After(e.expiry)
}

func (s *PlaceholderStore) removeElement(el *list.Element) {
	s.ll.Remove(el)
	ent := el.Value.(*placeholderEntry)
	delete(s.items, compositeKey(ent.ownerID, ent.id))
}

func (s *PlaceholderStore) evictIfNeeded() {
	for s.ll.Len() > s.cap {
		el := s.ll.Back()
		if el == nil {
			return
		}
		s.removeElement(el)
		s.evicts.Add(1)
	}
}

// compositeKey joins owner and id with a byte neither can contain.
func compositeKey(ownerID, id string) string {
	return ownerID + "\x00" + id
}
