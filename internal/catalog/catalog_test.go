package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/alakazam-audio/alakazam/internal/song"
)

func TestAllocateIDConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	ids := make(chan int64, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := store.AllocateID(ctx)
				if err != nil {
					t.Errorf("AllocateID: %v", err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id allocated: %d", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Errorf("expected %d ids, got %d", workers*perWorker, len(seen))
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.AllocateID(ctx)
	want := song.Song{ID: id, Title: "Roundabout", Artist: "Yes", HashCount: 1234}
	if err := store.Put(ctx, id, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected song to exist")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected missing song")
	}
}

func TestPutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.AllocateID(ctx)

	store.Put(ctx, id, song.Song{ID: id, Title: "v1"})
	store.Put(ctx, id, song.Song{ID: id, Title: "v2"})

	got, _, _ := store.Get(ctx, id)
	if got.Title != "v2" {
		t.Errorf("expected replacement to win, got %q", got.Title)
	}
}

func registerSongs(t *testing.T, store *MemoryStore, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, _ := store.AllocateID(ctx)
		store.Put(ctx, id, song.Song{ID: id, Title: "Song"})
		store.Register(ctx, id)
		ids = append(ids, id)
	}
	return ids
}

func TestPaginationCompleteness(t *testing.T) {
	store := NewMemoryStore()
	ids := registerSongs(t, store, 23)
	ctx := context.Background()

	const pageSize = 5
	var collected []int64
	for page := int64(0); ; page++ {
		songs, err := ListPage(ctx, store, page, pageSize)
		if err != nil {
			t.Fatalf("ListPage(%d): %v", page, err)
		}
		if len(songs) == 0 {
			break
		}
		for _, sg := range songs {
			collected = append(collected, sg.ID)
		}
	}

	if len(collected) != len(ids) {
		t.Fatalf("pagination covered %d ids, want %d", len(collected), len(ids))
	}
	for i, id := range collected {
		if id != ids[i] {
			t.Errorf("position %d: got id %d, want %d", i, id, ids[i])
		}
		if i > 0 && collected[i-1] >= id {
			t.Errorf("ids not ascending at position %d", i)
		}
	}
}

func TestListPageSkipsMissingRecords(t *testing.T) {
	store := NewMemoryStore()
	ids := registerSongs(t, store, 5)
	store.Drop(ids[2])

	songs, err := ListPage(context.Background(), store, 0, 10)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(songs) != 4 {
		t.Fatalf("expected 4 songs after drop, got %d", len(songs))
	}
	for _, sg := range songs {
		if sg.ID == ids[2] {
			t.Errorf("dropped song %d still listed", ids[2])
		}
	}
}

func TestListPageZeroPageSize(t *testing.T) {
	store := NewMemoryStore()
	registerSongs(t, store, 3)

	songs, err := ListPage(context.Background(), store, 0, 0)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(songs) != 0 {
		t.Errorf("expected empty page, got %d songs", len(songs))
	}
}

func TestListPageNegativeRejected(t *testing.T) {
	store := NewMemoryStore()
	if _, err := ListPage(context.Background(), store, -1, 10); err == nil {
		t.Error("expected error for negative page")
	}
}

func TestCount(t *testing.T) {
	store := NewMemoryStore()
	registerSongs(t, store, 7)
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("expected count 7, got %d", n)
	}
}
