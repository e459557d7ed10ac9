package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/song"
	"github.com/alakazam-audio/alakazam/internal/textindex"
)

func TestIndexSong(t *testing.T) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := New(cat, index, 4, WithClock(func() time.Time { return fixed }))

	meta := song.Metadata{Title: "Karma Police", Artist: "Radiohead", Genre: "rock", Duration: 261.5, SampleRate: 44100}
	sg, err := in.IndexSong(context.Background(), meta, []int64{1, 2, 3, 4}, 4)
	if err != nil {
		t.Fatalf("IndexSong: %v", err)
	}
	if sg.ID == 0 {
		t.Error("expected allocated id")
	}
	if sg.HashCount != 4 {
		t.Errorf("expected hashCount 4, got %d", sg.HashCount)
	}
	if !sg.UploadedAt.Equal(fixed) {
		t.Errorf("expected upload time %v, got %v", fixed, sg.UploadedAt)
	}

	stored, ok, err := cat.Get(context.Background(), sg.ID)
	if err != nil || !ok {
		t.Fatalf("stored song missing: ok=%v err=%v", ok, err)
	}
	if stored.Title != "Karma Police" {
		t.Errorf("unexpected stored title %q", stored.Title)
	}

	for _, h := range []int64{1, 2, 3, 4} {
		ids, err := index.PostingsFor(context.Background(), h)
		if err != nil {
			t.Fatalf("PostingsFor(%d): %v", h, err)
		}
		if len(ids) != 1 || ids[0] != sg.ID {
			t.Errorf("hash %d: expected posting [%d], got %v", h, sg.ID, ids)
		}
	}

	n, _ := cat.Count(context.Background())
	if n != 1 {
		t.Errorf("expected 1 registered song, got %d", n)
	}
}

func TestIndexSongDeduplicatesHashes(t *testing.T) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	in := New(cat, index, 4)

	sg, err := in.IndexSong(context.Background(), song.Metadata{Title: "T", Artist: "A"},
		[]int64{5, 5, 5, 6, 6, 7}, 3)
	if err != nil {
		t.Fatalf("IndexSong: %v", err)
	}
	if got := index.HashCount(); got != 3 {
		t.Errorf("expected 3 distinct hashes indexed, got %d", got)
	}
	ids, _ := index.PostingsFor(context.Background(), 5)
	if len(ids) != 1 || ids[0] != sg.ID {
		t.Errorf("expected single posting for duplicated hash, got %v", ids)
	}
}

// failingIndex rejects every append.
type failingIndex struct{}

func (failingIndex) Append(context.Context, int64, int64) error {
	return errors.New("append refused")
}

func (failingIndex) PostingsFor(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func TestIndexSongIDGapsOnFailure(t *testing.T) {
	cat := catalog.NewMemoryStore()
	in := New(cat, failingIndex{}, 4)
	ctx := context.Background()

	if _, err := in.IndexSong(ctx, song.Metadata{Title: "Doomed", Artist: "A"}, []int64{1}, 1); err == nil {
		t.Fatal("expected failure from posting append")
	}

	// The failed upload consumed an id; ids are not contiguous after a
	// partial failure and the next song simply gets the next value.
	good := New(cat, postings.NewMemoryIndex(), 4)
	sg, err := good.IndexSong(ctx, song.Metadata{Title: "Fine", Artist: "A"}, []int64{1}, 1)
	if err != nil {
		t.Fatalf("IndexSong: %v", err)
	}
	if sg.ID != 2 {
		t.Errorf("expected id 2 after leaked id 1, got %d", sg.ID)
	}

	n, _ := cat.Count(ctx)
	if n != 1 {
		t.Errorf("failed upload must not be registered: count %d", n)
	}
}

func TestIndexSongPopulatesTextIndex(t *testing.T) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	text := textindex.NewMemoryIndex()
	in := New(cat, index, 4, WithTextIndex(text))

	sg, err := in.IndexSong(context.Background(),
		song.Metadata{Title: "Paranoid Android", Artist: "Radiohead", Genre: "rock"},
		[]int64{1, 2}, 2)
	if err != nil {
		t.Fatalf("IndexSong: %v", err)
	}

	ids, err := text.SearchByText(context.Background(), "paranoid")
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(ids) != 1 || ids[0] != sg.ID {
		t.Errorf("expected text hit for song %d, got %v", sg.ID, ids)
	}
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestIndexSongInvalidatesCache(t *testing.T) {
	cat := catalog.NewMemoryStore()
	inv := &countingInvalidator{}
	in := New(cat, postings.NewMemoryIndex(), 4, WithInvalidator(inv))

	if _, err := in.IndexSong(context.Background(), song.Metadata{Title: "T", Artist: "A"}, []int64{1}, 1); err != nil {
		t.Fatalf("IndexSong: %v", err)
	}
	if inv.calls != 1 {
		t.Errorf("expected 1 invalidation, got %d", inv.calls)
	}
}
