// Package store provides bounded in-memory sets used by the hydration layer.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// URISet is a bounded, thread-safe set of URIs. A bloom filter answers most negative
// lookups without touching the exact set, and the least recently added URI is evicted
// once capacity is reached.
type URISet struct {
	mutex             sync.RWMutex
	uris              map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	capacity          int
	falsePositiveRate float64
	// stale counts URIs left in the bloom filter after removal or eviction
	stale int
}

// NewURISet creates a set holding at most capacity URIs.
func NewURISet(capacity int, falsePositiveRate float64) *URISet {
	if capacity <= 0 {
		capacity = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.001
	}

	s := &URISet{
		uris:              make(map[string]struct{}),
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
	}
	// lru.New only fails for a non-positive size.
	s.lru, _ = lru.New[string, struct{}](capacity)
	s.bloom = s.newFilter()
	return s
}

// Has reports whether uri is in the set.
func (s *URISet) Has(uri string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.TestString(uri) {
		return false
	}
	_, exists := s.uris[uri]
	return exists
}

// Add inserts uri, evicting the oldest entry when the set is full.
func (s *URISet) Add(uri string) {
	if uri == "" {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.addLocked(uri)
}

// AddAll inserts every non-empty URI.
func (s *URISet) AddAll(uris []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, uri := range uris {
		if uri != "" {
			s.addLocked(uri)
		}
	}
}

// Remove deletes uri from the set.
func (s *URISet) Remove(uri string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.uris[uri]; !exists {
		return
	}
	delete(s.uris, uri)
	s.lru.Remove(uri)
	s.markStaleLocked()
}

// Size returns the number of URIs in the set.
func (s *URISet) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.uris)
}

// Reset empties the set.
func (s *URISet) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.uris = make(map[string]struct{})
	s.lru.Purge()
	s.bloom = s.newFilter()
	s.stale = 0
}

func (s *URISet) addLocked(uri string) {
	if _, exists := s.uris[uri]; exists {
		return
	}

	s.uris[uri] = struct{}{}
	s.bloom.AddString(uri)
	s.lru.Add(uri, struct{}{})

	for len(s.uris) > s.capacity {
		oldest, _, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(s.uris, oldest)
		s.markStaleLocked()
	}
}

// markStaleLocked rebuilds the bloom filter once it carries as many dead entries as live
// capacity, keeping the false positive rate near its target.
func (s *URISet) markStaleLocked() {
	s.stale++
	if s.stale < s.capacity {
		return
	}

	s.bloom = s.newFilter()
	for uri := range s.uris {
		s.bloom.AddString(uri)
	}
	s.stale = 0
}

func (s *URISet) newFilter() *bloom.BloomFilter {
	return bloom.NewWithEstimates(uint(s.capacity), s.falsePositiveRate)
}
