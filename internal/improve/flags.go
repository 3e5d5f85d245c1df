package improve

import (
	"slices"
	"sync"

	"github.com/hashicorp/go-set/v2"
)

// FlagSet is the operator's set of case keys to prioritise in the next
// improvement request. It lives only in memory.
type FlagSet struct {
	mu   sync.RWMutex
	keys *set.Set[string]
}

// NewFlagSet returns an empty FlagSet.
func NewFlagSet() *FlagSet {
	return &FlagSet{keys: set.New[string](0)}
}

// Add flags key and reports whether it was newly added.
func (f *FlagSet) Add(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys.Insert(key)
}

// Remove unflags key and reports whether it was flagged.
func (f *FlagSet) Remove(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys.Remove(key)
}

// Toggle flips key's membership and returns the new state.
func (f *FlagSet) Toggle(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys.Remove(key) {
		return false
	}
	f.keys.Insert(key)
	return true
}

// Clear unflags every case.
func (f *FlagSet) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = set.New[string](0)
}

// Has reports whether key is flagged.
func (f *FlagSet) Has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.keys.Contains(key)
}

// Len returns the number of flagged cases.
func (f *FlagSet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.keys.Size()
}

// Keys returns the flagged keys in sorted order.
func (f *FlagSet) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := f.keys.Slice()
	slices.Sort(out)
	return out
}
