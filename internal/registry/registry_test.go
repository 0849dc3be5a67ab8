package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(capacity int, ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(capacity, ttl)
	s.now = clock.Now
	return s, clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "123_45", Key(123, 45))
	assert.Equal(t, "-1001234_7", Key(-1001234, 7))
}

func TestMemoryStore_PutGet(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	s.Put("1_1", "https://example.com/a")
	url, err := s.Get("1_1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", url)

	// Reads never consume the entry.
	url, err = s.Get("1_1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", url)
}

func TestMemoryStore_UnknownKey(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	url, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, url)
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	s.Put("k", "https://example.com/old")
	s.Put("k", "https://example.com/new")

	url, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", url)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_TTL(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)

	s.Put("old", "https://example.com/old")
	clock.Advance(30 * time.Minute)
	s.Put("young", "https://example.com/young")

	clock.Advance(31 * time.Minute)

	_, err := s.Get("old")
	assert.ErrorIs(t, err, ErrNotFound)

	url, err := s.Get("young")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/young", url)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_OverwriteRefreshesAge(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)

	s.Put("k", "https://example.com/1")
	clock.Advance(50 * time.Minute)
	s.Put("k", "https://example.com/2")
	clock.Advance(50 * time.Minute)

	url, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/2", url)
}

func TestMemoryStore_Capacity(t *testing.T) {
	s, _ := newTestStore(3, 0)

	for i := 0; i < 5; i++ {
		s.Put(fmt.Sprintf("k%d", i), fmt.Sprintf("https://example.com/%d", i))
	}

	assert.Equal(t, 3, s.Len())
	for _, gone := range []string{"k0", "k1"} {
		_, err := s.Get(gone)
		assert.ErrorIs(t, err, ErrNotFound, gone)
	}
	for _, kept := range []string{"k2", "k3", "k4"} {
		_, err := s.Get(kept)
		assert.NoError(t, err, kept)
	}
}

func TestMemoryStore_Unbounded(t *testing.T) {
	s, clock := newTestStore(0, 0)

	for i := 0; i < 100; i++ {
		s.Put(fmt.Sprintf("k%d", i), "u")
	}
	clock.Advance(24 * 365 * time.Hour)
	assert.Equal(t, 100, s.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(1000, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key(int64(i), i)
			url := fmt.Sprintf("https://example.com/%d", i)
			s.Put(key, url)
			got, err := s.Get(key)
			assert.NoError(t, err)
			assert.Equal(t, url, got)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
