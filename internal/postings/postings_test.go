package postings

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func TestAppendIdempotent(t *testing.T) {
	index := NewMemoryIndex()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := index.Append(ctx, 42, 7); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	ids, err := index.PostingsFor(ctx, 42)
	if err != nil {
		t.Fatalf("PostingsFor: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("expected single posting [7], got %v", ids)
	}
}

func TestPostingsForUnknownHash(t *testing.T) {
	index := NewMemoryIndex()
	ids, err := index.PostingsFor(context.Background(), 12345)
	if err != nil {
		t.Fatalf("PostingsFor: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty postings, got %v", ids)
	}
}

func TestConcurrentAppendsDisjointHashes(t *testing.T) {
	index := NewMemoryIndex()
	ctx := context.Background()

	const hashes = 200
	var wg sync.WaitGroup
	for h := 0; h < hashes; h++ {
		wg.Add(1)
		go func(h int64) {
			defer wg.Done()
			if err := index.Append(ctx, h, h%10); err != nil {
				t.Errorf("Append(%d): %v", h, err)
			}
		}(int64(h))
	}
	wg.Wait()

	if got := index.HashCount(); got != hashes {
		t.Errorf("expected %d distinct hashes, got %d", hashes, got)
	}
}

func TestConcurrentAppendsSameHash(t *testing.T) {
	index := NewMemoryIndex()
	ctx := context.Background()

	const songs = 50
	var wg sync.WaitGroup
	for s := 0; s < songs; s++ {
		wg.Add(1)
		go func(s int64) {
			defer wg.Done()
			index.Append(ctx, 1, s)
		}(int64(s))
	}
	wg.Wait()

	ids, _ := index.PostingsFor(ctx, 1)
	if len(ids) != songs {
		t.Errorf("expected %d postings, got %d", songs, len(ids))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryIndex()
	src.Append(ctx, 10, 1)
	src.Append(ctx, 10, 2)
	src.Append(ctx, 20, 1)
	src.Append(ctx, 30, 3)

	dir := t.TempDir()
	if err := WriteSnapshot(ctx, src, dir, "postings.snap"); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	dst := NewMemoryIndex()
	if err := ReadSnapshot(ctx, dst, filepath.Join(dir, "postings.snap")); err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	for _, tt := range []struct {
		hash int64
		want []int64
	}{
		{10, []int64{1, 2}},
		{20, []int64{1}},
		{30, []int64{3}},
	} {
		got, err := dst.PostingsFor(ctx, tt.hash)
		if err != nil {
			t.Fatalf("PostingsFor(%d): %v", tt.hash, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("hash %d: got %v, want %v", tt.hash, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("hash %d: got %v, want %v", tt.hash, got, tt.want)
			}
		}
	}
}

func TestSnapshotRestoreMerges(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryIndex()
	src.Append(ctx, 10, 1)

	dir := t.TempDir()
	if err := WriteSnapshot(ctx, src, dir, "postings.snap"); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	dst := NewMemoryIndex()
	dst.Append(ctx, 10, 2)
	dst.Append(ctx, 99, 5)
	if err := ReadSnapshot(ctx, dst, filepath.Join(dir, "postings.snap")); err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	ids, _ := dst.PostingsFor(ctx, 10)
	if len(ids) != 2 {
		t.Errorf("expected merged postings [1 2], got %v", ids)
	}
	ids, _ = dst.PostingsFor(ctx, 99)
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("pre-existing posting lost: %v", ids)
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := NewMemoryIndex()
	src.Append(ctx, 1, 1)
	if err := WriteSnapshot(ctx, src, dir, "valid.snap"); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	if err := ReadSnapshot(ctx, NewMemoryIndex(), filepath.Join(dir, "missing.snap")); err == nil {
		t.Error("expected error for missing file")
	}
}
