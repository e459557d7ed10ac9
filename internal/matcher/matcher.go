// Package matcher implements the fingerprint matching engine: it probes the
// posting index with every hash in a query fingerprint, accumulates per-song
// match evidence, scores each candidate, and returns a ranked result list.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/song"
	"github.com/alakazam-audio/alakazam/pkg/metrics"
	"github.com/alakazam-audio/alakazam/pkg/tracing"
)

// Result is one ranked candidate from a match query.
type Result struct {
	Song             song.Song `json:"song"`
	Confidence       float64   `json:"confidence"`
	MatchCount       int       `json:"matchCount"`
	UniqueMatches    int       `json:"uniqueMatches"`
	TotalQueryHashes int       `json:"totalQueryHashes"`
}

// evidence is the per-song accumulator. Query hashes are grouped by distinct
// value before lookup, so a single posting hit contributes the value's full
// occurrence count to matchCount and exactly one to uniqueMatches.
type evidence struct {
	matchCount    int
	uniqueMatches int
}

// Matcher executes match queries against a posting index and catalog.
type Matcher struct {
	index      postings.Index
	catalog    catalog.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	sem        *semaphore.Weighted
	maxResults int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mt *Matcher) { mt.metrics = m }
}

// WithMaxResults caps the ranked list length. Zero means unbounded.
func WithMaxResults(n int) Option {
	return func(mt *Matcher) { mt.maxResults = n }
}

// New creates a Matcher. maxConcurrentLookups bounds the posting-lookup
// fan-out per query.
func New(index postings.Index, cat catalog.Store, maxConcurrentLookups int, opts ...Option) *Matcher {
	if maxConcurrentLookups <= 0 {
		maxConcurrentLookups = 32
	}
	m := &Matcher{
		index:   index,
		catalog: cat,
		logger:  slog.Default().With("component", "matcher"),
		sem:     semaphore.NewWeighted(int64(maxConcurrentLookups)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match runs the full pipeline for one query fingerprint: evidence
// accumulation, scoring, hydration, and ranking. An empty query yields an
// empty result without error. Candidates whose song record has gone missing
// are dropped silently.
func (m *Matcher) Match(ctx context.Context, queryHashes []int64) ([]Result, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "matcher.Match")
	defer span.End()
	span.SetAttr("query_hashes", len(queryHashes))

	if m.metrics != nil {
		m.metrics.QueryHashCount.Observe(float64(len(queryHashes)))
	}
	if len(queryHashes) == 0 {
		return []Result{}, nil
	}

	acc, err := m.accumulate(ctx, queryHashes)
	if err != nil {
		if m.metrics != nil {
			m.metrics.MatchQueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	results, err := m.scoreAndHydrate(ctx, acc, len(queryHashes))
	if err != nil {
		if m.metrics != nil {
			m.metrics.MatchQueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	results = topK(results, m.maxResults)

	if m.metrics != nil {
		m.metrics.MatchCandidates.Observe(float64(len(results)))
		if len(results) > 0 {
			m.metrics.MatchQueriesTotal.WithLabelValues("hit").Inc()
			m.metrics.MatchConfidenceTop.Observe(results[0].Confidence)
		} else {
			m.metrics.MatchQueriesTotal.WithLabelValues("zero_result").Inc()
		}
	}

	m.logger.Debug("match complete",
		"query_hashes", len(queryHashes),
		"candidates", len(acc),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// accumulate fans out posting lookups, one per distinct hash value, bounded
// by the semaphore, and folds the hits into per-song evidence. Multiple
// lookups can resolve to the same song so the accumulator map is
// mutex-guarded.
func (m *Matcher) accumulate(ctx context.Context, queryHashes []int64) (map[int64]*evidence, error) {
	occurrences := make(map[int64]int, len(queryHashes))
	for _, h := range queryHashes {
		occurrences[h]++
	}

	var (
		mu       sync.Mutex
		acc      = make(map[int64]*evidence)
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for h, count := range occurrences {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(hash int64, count int) {
			defer wg.Done()
			defer m.sem.Release(1)
			if m.metrics != nil {
				m.metrics.PostingLookups.Inc()
			}
			ids, err := m.index.PostingsFor(ctx, hash)
			if err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("posting lookup for %d: %w", hash, err) })
				return
			}
			if len(ids) == 0 {
				return
			}
			mu.Lock()
			for _, id := range ids {
				ev, ok := acc[id]
				if !ok {
					ev = &evidence{}
					acc[id] = ev
				}
				ev.matchCount += count
				ev.uniqueMatches++
			}
			mu.Unlock()
		}(h, count)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return acc, nil
}

// scoreAndHydrate scores every candidate, drops those below the threshold,
// and joins survivors against the catalog.
func (m *Matcher) scoreAndHydrate(ctx context.Context, acc map[int64]*evidence, totalQueryHashes int) ([]Result, error) {
	results := make([]Result, 0, len(acc))
	for id, ev := range acc {
		confidence := score(ev.matchCount, ev.uniqueMatches, totalQueryHashes)
		if confidence <= 0 {
			continue
		}
		sg, ok, err := m.catalog.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hydrating candidate %d: %w", id, err)
		}
		if !ok {
			// Dangling posting: the song was never committed or its record
			// is gone. Drop the candidate, not the query.
			m.logger.Warn("dropping candidate with missing song record", "song_id", id)
			continue
		}
		results = append(results, Result{
			Song:             sg,
			Confidence:       confidence,
			MatchCount:       ev.matchCount,
			UniqueMatches:    ev.uniqueMatches,
			TotalQueryHashes: totalQueryHashes,
		})
	}
	return results, nil
}
