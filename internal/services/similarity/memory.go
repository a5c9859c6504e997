// -----------------------------------------------------------------------
// Batch Memory - bounded FIFO of article fingerprints per batch
// -----------------------------------------------------------------------

package similarity

import (
	"sync"
	"time"
)

// batchEntry is one retained article fingerprint.
type batchEntry struct {
	JobID     string
	Keyword   string
	Shingles  map[uint64]struct{}
	Embedding []float32 // unit-normalized, nil when embedding was unavailable
	AddedAt   time.Time
}

// batchMemory holds the fingerprints of one batch's recent articles, bounded
// FIFO. lastTouch drives TTL expiry of the whole batch.
type batchMemory struct {
	entries   []batchEntry
	lastTouch time.Time
}

// memoryStore maps batch ids to their memories. Read-compare-append on a
// batch is atomic under the store mutex per the batch scoping rules.
type memoryStore struct {
	mu       sync.Mutex
	batches  map[string]*batchMemory
	capacity int
	ttl      time.Duration
}

func newMemoryStore(capacity int, ttl time.Duration) *memoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryStore{
		batches:  make(map[string]*batchMemory),
		capacity: capacity,
		ttl:      ttl,
	}
}

// compareAndAppend runs compare against the batch's current entries, then
// appends entry, evicting the oldest when the batch is at capacity. The
// whole sequence holds the store lock so concurrent jobs in one batch never
// interleave their read and append.
func (m *memoryStore) compareAndAppend(batchID string, entry batchEntry, compare func(prior []batchEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.batches[batchID]
	if !ok {
		mem = &batchMemory{}
		m.batches[batchID] = mem
	}
	mem.lastTouch = time.Now()

	compare(mem.entries)

	if len(mem.entries) >= m.capacity {
		// FIFO eviction; shift keeps ordering oldest-first.
		mem.entries = mem.entries[1:]
	}
	mem.entries = append(mem.entries, entry)
}

// entryCount returns how many fingerprints a batch currently retains.
func (m *memoryStore) entryCount(batchID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mem, ok := m.batches[batchID]; ok {
		return len(mem.entries)
	}
	return 0
}

// purgeExpired drops batches idle past the TTL. Returns removed batch count.
func (m *memoryStore) purgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl)
	removed := 0
	for batchID, mem := range m.batches {
		if mem.lastTouch.Before(cutoff) {
			delete(m.batches, batchID)
			removed++
		}
	}
	return removed
}

// batchCount returns the number of live batches.
func (m *memoryStore) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}
