// Package registry keeps the source URL of every quality menu shown to a user,
// so a button press can recover a link that does not fit into callback data.
//
// The registry is process memory only. After a restart every key is unknown
// and lookups fail with ErrNotFound.
package registry

import (
	"container/list"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned for keys that were never stored or have been evicted.
var ErrNotFound = errors.New("pending selection not found")

// Store maps registry keys to source URLs.
type Store interface {
	// Put stores url under key, replacing any previous value.
	Put(key, url string)
	// Get returns the url stored under key or ErrNotFound.
	Get(key string) (string, error)
	// Len returns the number of resolvable entries.
	Len() int
}

// Key builds the registry key for the message that carried the link.
func Key(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + "_" + strconv.Itoa(messageID)
}

type entry struct {
	key      string
	url      string
	storedAt time.Time
}

// MemoryStore is a bounded in-memory Store.
// Entries older than ttl are unresolvable; when capacity is reached the
// oldest entry is evicted. A zero ttl or capacity disables that limit.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = oldest
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(key, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	if el, ok := s.items[key]; ok {
		// Overwrite refreshes the entry's age.
		e := el.Value.(*entry)
		e.url = url
		e.storedAt = now
		s.order.MoveToBack(el)
		return
	}

	if s.capacity > 0 {
		for s.order.Len() >= s.capacity {
			s.removeLocked(s.order.Front(), evictReasonCapacity)
		}
	}

	s.items[key] = s.order.PushBack(&entry{key: key, url: url, storedAt: now})
	setEntries(s.order.Len())
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		recordLookup(lookupMiss)
		return "", ErrNotFound
	}
	e := el.Value.(*entry)
	if s.expired(e, s.now()) {
		s.removeLocked(el, evictReasonExpired)
		recordLookup(lookupExpired)
		return "", ErrNotFound
	}
	recordLookup(lookupHit)
	return e.url, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
	return s.order.Len()
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.storedAt) > s.ttl
}

// expireLocked drops expired entries from the front; the list is ordered by storedAt.
func (s *MemoryStore) expireLocked(now time.Time) {
	for el := s.order.Front(); el != nil; el = s.order.Front() {
		if !s.expired(el.Value.(*entry), now) {
			return
		}
		s.removeLocked(el, evictReasonExpired)
	}
}

func (s *MemoryStore) removeLocked(el *list.Element, reason string) {
	e := s.order.Remove(el).(*entry)
	delete(s.items, e.key)
	recordEviction(reason)
	setEntries(s.order.Len())
}
