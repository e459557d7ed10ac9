package analytics

import (
	"context"
	"sort"
	"sync"

	"github.com/alakazam-audio/alakazam/pkg/config"
	"github.com/alakazam-audio/alakazam/pkg/kafka"
)

// maxLatencySamples bounds the rolling latency window used for percentiles.
const maxLatencySamples = 4096

// Stats is the aggregate view served by the stats endpoint.
type Stats struct {
	MatchQueries     int64       `json:"matchQueries"`
	ZeroResultCount  int64       `json:"zeroResultCount"`
	CacheHitCount    int64       `json:"cacheHitCount"`
	SongsIndexed     int64       `json:"songsIndexed"`
	MatchLatencyP50  int64       `json:"matchLatencyP50Millis"`
	MatchLatencyP95  int64       `json:"matchLatencyP95Millis"`
	MatchLatencyP99  int64       `json:"matchLatencyP99Millis"`
	TopMatchedSongs  []SongCount `json:"topMatchedSongs"`
}

// SongCount is one entry in the top-matched leaderboard.
type SongCount struct {
	SongID int64  `json:"songId"`
	Title  string `json:"title"`
	Count  int64  `json:"count"`
}

// Aggregator consumes the analytics topic and maintains rolling aggregates.
type Aggregator struct {
	mu          sync.RWMutex
	matches     int64
	zeroResults int64
	cacheHits   int64
	indexed     int64
	latencies   []int64
	songCounts  map[int64]*SongCount
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		songCounts: make(map[int64]*SongCount),
	}
}

// Consumer returns a Kafka consumer feeding this aggregator.
func (a *Aggregator) Consumer(cfg config.KafkaConfig) *kafka.Consumer {
	return kafka.NewConsumer(cfg, cfg.Topics.AnalyticsEvents, a.handle)
}

func (a *Aggregator) handle(ctx context.Context, key, value []byte) error {
	env, err := kafka.DecodeJSON[Envelope](value)
	if err != nil {
		return err
	}
	switch env.Type {
	case TypeMatch:
		if env.Match != nil {
			a.recordMatch(*env.Match)
		}
	case TypeIndex:
		if env.Index != nil {
			a.recordIndex(*env.Index)
		}
	}
	return nil
}

func (a *Aggregator) recordMatch(ev MatchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches++
	if ev.ResultCount == 0 {
		a.zeroResults++
	}
	if ev.CacheHit {
		a.cacheHits++
	}
	a.latencies = append(a.latencies, ev.DurationMillis)
	if len(a.latencies) > maxLatencySamples {
		a.latencies = a.latencies[len(a.latencies)-maxLatencySamples:]
	}
	if ev.ResultCount > 0 && ev.TopSongID != 0 {
		sc, ok := a.songCounts[ev.TopSongID]
		if !ok {
			sc = &SongCount{SongID: ev.TopSongID, Title: ev.TopSongTitle}
			a.songCounts[ev.TopSongID] = sc
		}
		sc.Count++
	}
}

func (a *Aggregator) recordIndex(IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexed++
}

// Snapshot returns the current aggregate view. topN bounds the leaderboard.
func (a *Aggregator) Snapshot(topN int) Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		MatchQueries:    a.matches,
		ZeroResultCount: a.zeroResults,
		CacheHitCount:   a.cacheHits,
		SongsIndexed:    a.indexed,
	}

	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.MatchLatencyP50 = percentile(sorted, 0.50)
		stats.MatchLatencyP95 = percentile(sorted, 0.95)
		stats.MatchLatencyP99 = percentile(sorted, 0.99)
	}

	top := make([]SongCount, 0, len(a.songCounts))
	for _, sc := range a.songCounts {
		top = append(top, *sc)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].SongID < top[j].SongID
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	stats.TopMatchedSongs = top
	return stats
}

// percentile reads the p-th percentile from a sorted sample.
func percentile(sorted []int64, p float64) int64 {
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
