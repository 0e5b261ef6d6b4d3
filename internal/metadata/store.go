// Package metadata implements the Metadata Store: an id → Entry map with
// a promptHash → id secondary index, per-entry TTL, and O(1) LRU
// eviction at a configured capacity.
package metadata

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is the immutable-except-for-hit-bookkeeping record created by an
// insert into the Cache Controller.
type Entry struct {
	ID         string
	VectorID   uint64
	PromptHash string

	NormalizedPrompt string

	CompressedPrompt   []byte
	CompressedResponse []byte

	OriginalPromptSize     int
	OriginalResponseSize   int
	CompressedPromptSize   int
	CompressedResponseSize int

	CreatedAt    int64 // unix millis
	LastAccessed int64 // unix millis
	AccessCount  int64

	// ExpiresAt is an absolute unix-millis deadline; zero means the entry
	// never expires.
	ExpiresAt int64
}

func (e *Entry) expired(nowMillis int64) bool {
	return e.ExpiresAt != 0 && e.ExpiresAt <= nowMillis
}

// Stats is the Metadata Store's own statistics, a subset of what the
// Cache Controller reports via its own Stats.
type Stats struct {
	TotalEntries        int
	TotalCompressedSize int64
	MemoryLimit         string
}

// Store is the Metadata Store component (E). It is safe for concurrent
// use; the Cache Controller is the only intended caller.
type Store struct {
	mu sync.Mutex

	cache       *lru.Cache[string, *Entry]
	byHash      map[string]string // promptHash -> id
	maxElements int
	memoryLimit string
}

// New constructs a Metadata Store with the given capacity (maxElements,
// defaulting to 100,000) and an informational
// memoryLimit string surfaced back through Stats.
func New(maxElements int, memoryLimit string) *Store {
	if maxElements <= 0 {
		maxElements = 100_000
	}

	s := &Store{
		byHash:      make(map[string]string, maxElements),
		maxElements: maxElements,
		memoryLimit: memoryLimit,
	}

	// NewWithEvict drives the capacity bound: a new distinct id inserted
	// at capacity evicts the LRU head via this callback, which keeps the
	// secondary index consistent. Overwrites of an existing key never
	// trigger this callback.
	c, err := lru.NewWithEvict[string, *Entry](maxElements, func(id string, entry *Entry) {
		if entry != nil {
			delete(s.byHash, entry.PromptHash)
		}
	})
	if err != nil {
		// Only returned for a non-positive size, which is normalized above.
		panic(err)
	}
	s.cache = c

	return s
}

// Set inserts or overwrites the entry under id, refreshing its secondary
// index mapping. ttl of zero means the entry never expires.
func (s *Store) Set(id string, entry *Entry, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	} else {
		entry.ExpiresAt = 0
	}
	entry.ID = id

	if prev, ok := s.cache.Peek(id); ok && prev.PromptHash != entry.PromptHash {
		delete(s.byHash, prev.PromptHash)
	}

	s.cache.Add(id, entry)
	s.byHash[entry.PromptHash] = id
}

// Get returns the live entry for id, touching its LRU position and hit
// bookkeeping. Expired entries are purged and reported as not found.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*Entry, bool) {
	entry, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	if entry.expired(time.Now().UnixMilli()) {
		s.deleteLocked(id)
		return nil, false
	}

	entry.LastAccessed = time.Now().UnixMilli()
	entry.AccessCount++
	return entry, true
}

// FindByPromptHash looks up an entry by its normalized-prompt fingerprint,
// applying the same expiry and hit bookkeeping as Get.
func (s *Store) FindByPromptHash(hash string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, false
	}
	return s.getLocked(id)
}

// Delete removes id and its secondary index entry, reporting whether it
// was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) bool {
	entry, ok := s.cache.Peek(id)
	if !ok {
		return false
	}
	delete(s.byHash, entry.PromptHash)
	s.cache.Remove(id)
	return true
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	s.byHash = make(map[string]string, s.maxElements)
}

// Stats reports the Metadata Store's own counters; the Cache Controller
// layers token/cost/hit-rate accounting on top of this.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var totalCompressed int64
	for _, id := range s.cache.Keys() {
		entry, ok := s.cache.Peek(id)
		if !ok {
			continue
		}
		totalCompressed += int64(entry.CompressedResponseSize)
	}

	return Stats{
		TotalEntries:        s.cache.Len(),
		TotalCompressedSize: totalCompressed,
		MemoryLimit:         s.memoryLimit,
	}
}

// Entries returns every live, non-expired entry for snapshotting. It does
// not mutate LRU order or hit bookkeeping.
func (s *Store) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	out := make([]*Entry, 0, s.cache.Len())
	for _, id := range s.cache.Keys() {
		entry, ok := s.cache.Peek(id)
		if !ok || entry.expired(now) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Len returns the current number of live entries, including any not yet
// lazily purged for expiry.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
