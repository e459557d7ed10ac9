// Package benchmark contains Go benchmarks for the posting index, indexer,
// and matching engine, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/indexer"
	"github.com/alakazam-audio/alakazam/internal/matcher"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/song"
)

// seedCorpus indexes songCount synthetic songs with hashesPerSong hashes
// each and returns the fingerprints for query generation.
func seedCorpus(tb testing.TB, cat *catalog.MemoryStore, index *postings.MemoryIndex, songCount, hashesPerSong int) [][]int64 {
	tb.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	in := indexer.New(cat, index, 8)

	fingerprints := make([][]int64, 0, songCount)
	for i := 0; i < songCount; i++ {
		hashes := make([]int64, hashesPerSong)
		for j := range hashes {
			hashes[j] = rng.Int63()
		}
		meta := song.Metadata{Title: fmt.Sprintf("Bench Song %d", i), Artist: "Bench"}
		if _, err := in.IndexSong(ctx, meta, hashes, hashesPerSong); err != nil {
			tb.Fatalf("IndexSong: %v", err)
		}
		fingerprints = append(fingerprints, hashes)
	}
	return fingerprints
}

// BenchmarkPostingAppend measures single-posting write throughput into the
// in-memory inverted index.
func BenchmarkPostingAppend(b *testing.B) {
	index := postings.NewMemoryIndex()
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		index.Append(ctx, int64(i), int64(i%100))
	}
}

// BenchmarkIndexSong measures end-to-end ingestion of a 2 000-hash song.
func BenchmarkIndexSong(b *testing.B) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	in := indexer.New(cat, index, 8)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(1))
	hashes := make([]int64, 2000)
	for i := range hashes {
		hashes[i] = rng.Int63()
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.IndexSong(ctx, song.Metadata{Title: "B", Artist: "B"}, hashes, len(hashes)); err != nil {
			b.Fatalf("IndexSong: %v", err)
		}
	}
}

// BenchmarkMatch measures full match-pipeline latency over a 100-song
// corpus with 200-hash queries.
func BenchmarkMatch(b *testing.B) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	fingerprints := seedCorpus(b, cat, index, 100, 2000)
	m := matcher.New(index, cat, 16)
	ctx := context.Background()

	query := make([]int64, 200)
	copy(query, fingerprints[0][:200])

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := m.Match(ctx, query)
		if err != nil {
			b.Fatalf("Match: %v", err)
		}
		_ = results
	}
}

// BenchmarkMatchParallel measures concurrent match throughput.
func BenchmarkMatchParallel(b *testing.B) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	fingerprints := seedCorpus(b, cat, index, 100, 2000)
	m := matcher.New(index, cat, 16)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		query := make([]int64, 200)
		copy(query, fingerprints[1][:200])
		for pb.Next() {
			if _, err := m.Match(ctx, query); err != nil {
				b.Fatalf("Match: %v", err)
			}
		}
	})
}

// BenchmarkSnapshotWrite measures the cost of persisting a populated
// posting index.
func BenchmarkSnapshotWrite(b *testing.B) {
	cat := catalog.NewMemoryStore()
	index := postings.NewMemoryIndex()
	seedCorpus(b, cat, index, 50, 2000)
	dir := b.TempDir()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := postings.WriteSnapshot(ctx, index, dir, "bench.snap"); err != nil {
			b.Fatalf("WriteSnapshot: %v", err)
		}
	}
}
