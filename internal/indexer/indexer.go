// Package indexer ingests song fingerprints: it allocates an id, persists
// the song record, appends the inverted-index postings, and registers the id
// for pagination.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/song"
	"github.com/alakazam-audio/alakazam/internal/textindex"
	"github.com/alakazam-audio/alakazam/pkg/metrics"
	"github.com/alakazam-audio/alakazam/pkg/tracing"
)

// Invalidator is notified after a song lands so dependent caches can drop
// stale entries.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Indexer wires the catalog, posting index, and text index together for
// ingestion.
type Indexer struct {
	catalog     catalog.Store
	index       postings.Index
	text        textindex.Index
	metrics     *metrics.Metrics
	invalidator Invalidator
	logger      *slog.Logger
	maxAppends  int
	now         func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithTextIndex enables keyword indexing of song metadata.
func WithTextIndex(ix textindex.Index) Option {
	return func(in *Indexer) { in.text = ix }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(in *Indexer) { in.metrics = m }
}

// WithInvalidator registers a cache to flush after each indexed song.
func WithInvalidator(inv Invalidator) Option {
	return func(in *Indexer) { in.invalidator = inv }
}

// WithClock overrides the upload-timestamp source. Tests use it.
func WithClock(now func() time.Time) Option {
	return func(in *Indexer) { in.now = now }
}

// New creates an Indexer. maxConcurrentAppends bounds the posting-append
// fan-out per song.
func New(cat catalog.Store, index postings.Index, maxConcurrentAppends int, opts ...Option) *Indexer {
	if maxConcurrentAppends <= 0 {
		maxConcurrentAppends = 16
	}
	in := &Indexer{
		catalog:    cat,
		index:      index,
		logger:     slog.Default().With("component", "indexer"),
		maxAppends: maxConcurrentAppends,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IndexSong ingests one song fingerprint and returns the stored record.
//
// Failure after id allocation does not reclaim the id: gaps in the id space
// are accepted, since ids are opaque keys rather than a dense count. There
// is also no transaction across the steps — a crash between the catalog
// write and the posting appends leaves a song that undercounts in future
// matches until re-uploaded, which is a documented trade-off.
func (in *Indexer) IndexSong(ctx context.Context, meta song.Metadata, hashes []int64, hashCount int) (song.Song, error) {
	ctx, span := tracing.StartChildSpan(ctx, "indexer.IndexSong")
	defer span.End()
	span.SetAttr("hash_count", hashCount)

	id, err := in.catalog.AllocateID(ctx)
	if err != nil {
		return song.Song{}, fmt.Errorf("allocating song id: %w", err)
	}

	sg := song.Song{
		ID:         id,
		Title:      meta.Title,
		Artist:     meta.Artist,
		Genre:      meta.Genre,
		Duration:   meta.Duration,
		SampleRate: meta.SampleRate,
		HashCount:  hashCount,
		UploadedAt: in.now().UTC(),
	}
	if err := in.catalog.Put(ctx, id, sg); err != nil {
		return song.Song{}, fmt.Errorf("storing song %d: %w", id, err)
	}

	distinct := dedup(hashes)
	if err := in.appendPostings(ctx, id, distinct); err != nil {
		return song.Song{}, fmt.Errorf("indexing postings for song %d: %w", id, err)
	}

	if err := in.catalog.Register(ctx, id); err != nil {
		return song.Song{}, fmt.Errorf("registering song %d: %w", id, err)
	}

	if in.text != nil {
		if err := in.text.IndexSong(ctx, id, meta.Title, meta.Artist, meta.Genre); err != nil {
			// Text search is auxiliary: a failed keyword index must not fail
			// the upload.
			in.logger.Warn("text indexing failed", "song_id", id, "error", err)
		}
	}

	if in.invalidator != nil {
		if err := in.invalidator.Invalidate(ctx); err != nil {
			in.logger.Warn("cache invalidation failed", "song_id", id, "error", err)
		}
	}

	if in.metrics != nil {
		in.metrics.SongsIndexedTotal.Inc()
		in.metrics.PostingsAppended.Add(float64(len(distinct)))
	}
	in.logger.Info("song indexed",
		"song_id", id,
		"title", meta.Title,
		"artist", meta.Artist,
		"distinct_hashes", len(distinct),
	)
	return sg, nil
}

// appendPostings fans out appends across distinct hash values. Appends write
// disjoint keys so no ordering is needed between them.
func (in *Indexer) appendPostings(ctx context.Context, songID int64, distinct []int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.maxAppends)
	for _, h := range distinct {
		h := h
		g.Go(func() error {
			return in.index.Append(ctx, h, songID)
		})
	}
	return g.Wait()
}

// dedup returns the distinct hash values in first-seen order. The posting
// store is set-typed anyway, but deduplicating here keeps the fan-out from
// issuing redundant writes.
func dedup(hashes []int64) []int64 {
	seen := make(map[int64]struct{}, len(hashes))
	out := make([]int64, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
