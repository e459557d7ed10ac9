package textindex

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is the in-process text index for tests and embedded
// deployments.
type MemoryIndex struct {
	mu     sync.RWMutex
	title  map[string]map[int64]struct{}
	artist map[string]map[int64]struct{}
	genre  map[string]map[int64]struct{}
}

// NewMemoryIndex creates an empty in-memory text index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		title:  make(map[string]map[int64]struct{}),
		artist: make(map[string]map[int64]struct{}),
		genre:  make(map[string]map[int64]struct{}),
	}
}

func add(m map[string]map[int64]struct{}, tok string, id int64) {
	set, ok := m[tok]
	if !ok {
		set = make(map[int64]struct{})
		m[tok] = set
	}
	set[id] = struct{}{}
}

func (ix *MemoryIndex) IndexSong(ctx context.Context, songID int64, title, artist, genre string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, tok := range titleTokens(title) {
		add(ix.title, tok, songID)
	}
	for _, tok := range artistTokens(artist) {
		add(ix.artist, tok, songID)
	}
	for _, tok := range genreTokens(genre) {
		add(ix.genre, tok, songID)
	}
	return nil
}

func (ix *MemoryIndex) SearchByText(ctx context.Context, query string) ([]int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, tok := range queryTokens(query) {
		for _, m := range []map[string]map[int64]struct{}{ix.title, ix.artist, ix.genre} {
			for id := range m[tok] {
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
