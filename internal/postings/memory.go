package postings

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is an in-process posting index used by tests and embedded
// deployments. Set semantics come from the nested map; the RWMutex makes
// concurrent appends during a single indexing fan-out safe.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[int64]map[int64]struct{}
}

// NewMemoryIndex creates an empty in-memory posting index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[int64]map[int64]struct{}),
	}
}

func (ix *MemoryIndex) Append(ctx context.Context, hash int64, songID int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	set, ok := ix.index[hash]
	if !ok {
		set = make(map[int64]struct{})
		ix.index[hash] = set
	}
	set[songID] = struct{}{}
	return nil
}

func (ix *MemoryIndex) PostingsFor(ctx context.Context, hash int64) ([]int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set, ok := ix.index[hash]
	if !ok {
		return nil, nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HashCount returns the number of distinct hash values in the index.
func (ix *MemoryIndex) HashCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.index)
}

// Snapshot returns every posting entry sorted by hash, for snapshot
// serialisation.
func (ix *MemoryIndex) Snapshot() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entries := make([]Entry, 0, len(ix.index))
	for hash, set := range ix.index {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		entries = append(entries, Entry{Hash: hash, SongIDs: ids})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })
	return entries
}

// Restore merges snapshot entries back into the index.
func (ix *MemoryIndex) Restore(entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range entries {
		set, ok := ix.index[e.Hash]
		if !ok {
			set = make(map[int64]struct{}, len(e.SongIDs))
			ix.index[e.Hash] = set
		}
		for _, id := range e.SongIDs {
			set[id] = struct{}{}
		}
	}
}

// Entry is one hash's posting set, used by snapshots.
type Entry struct {
	Hash    int64   `json:"h"`
	SongIDs []int64 `json:"s"`
}
