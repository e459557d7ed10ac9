package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alakazam-audio/alakazam/internal/song"
)

// MemoryStore is an in-process catalog used by tests and embedded
// deployments. It mirrors the Redis store's semantics: atomic id
// allocation, create-or-replace puts, and an insertion-ordered registry.
type MemoryStore struct {
	nextID atomic.Int64
	mu     sync.RWMutex
	songs  map[int64]song.Song
	order  []int64
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		songs: make(map[int64]song.Song),
	}
}

func (s *MemoryStore) AllocateID(ctx context.Context) (int64, error) {
	return s.nextID.Add(1), nil
}

func (s *MemoryStore) Put(ctx context.Context, id int64, sg song.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[id] = sg
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (song.Song, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.songs[id]
	return sg, ok, nil
}

func (s *MemoryStore) Register(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	return nil
}

func (s *MemoryStore) ListIDs(ctx context.Context, offset, limit int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || offset >= int64(len(s.order)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(s.order)) {
		end = int64(len(s.order))
	}
	ids := make([]int64, end-offset)
	copy(ids, s.order[offset:end])
	return ids, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.order)), nil
}

// Drop removes a song record without touching the registry. Tests use it to
// simulate dangling registry entries and postings.
func (s *MemoryStore) Drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.songs, id)
}
