package crawler

import (
	"sync"

	"github.com/IshaanNene/webrag/internal/scope"
)

// VisitedSet tracks the canonical URLs attempted during one crawl.
type VisitedSet struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
}

// NewVisitedSet creates an empty VisitedSet with the given estimated capacity.
func NewVisitedSet(estimatedCapacity int) *VisitedSet {
	return &VisitedSet{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Contains returns true if the URL (after canonicalization) has been visited.
func (v *VisitedSet) Contains(rawURL string) bool {
	canonical := scope.Canonicalize(rawURL)

	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[canonical]
	return ok
}

// Add marks a URL as visited. It reports false if it was already present.
func (v *VisitedSet) Add(rawURL string) bool {
	canonical := scope.Canonicalize(rawURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[canonical]; ok {
		return false
	}
	v.seen[canonical] = struct{}{}
	v.order = append(v.order, canonical)
	return true
}

// Len returns the number of unique URLs visited.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}

// URLs returns the visited URLs in the order they were added.
func (v *VisitedSet) URLs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}
