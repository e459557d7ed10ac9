package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func feed(t *testing.T, a *Aggregator, env Envelope) {
	t.Helper()
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := a.handle(context.Background(), []byte(env.Type), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestAggregatorCounts(t *testing.T) {
	a := NewAggregator()
	now := time.Now().UTC()

	feed(t, a, Envelope{Type: TypeMatch, Timestamp: now, Match: &MatchEvent{
		TotalQueryHashes: 100, ResultCount: 1, TopSongID: 7, TopSongTitle: "Hit", TopConfidence: 0.9, DurationMillis: 12,
	}})
	feed(t, a, Envelope{Type: TypeMatch, Timestamp: now, Match: &MatchEvent{
		TotalQueryHashes: 50, ResultCount: 0, CacheHit: false, DurationMillis: 4,
	}})
	feed(t, a, Envelope{Type: TypeMatch, Timestamp: now, Match: &MatchEvent{
		TotalQueryHashes: 100, ResultCount: 1, TopSongID: 7, TopSongTitle: "Hit", CacheHit: true, DurationMillis: 1,
	}})
	feed(t, a, Envelope{Type: TypeIndex, Timestamp: now, Index: &IndexEvent{SongID: 7, Title: "Hit", HashCount: 1000}})

	stats := a.Snapshot(10)
	if stats.MatchQueries != 3 {
		t.Errorf("expected 3 match queries, got %d", stats.MatchQueries)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("expected 1 zero-result query, got %d", stats.ZeroResultCount)
	}
	if stats.CacheHitCount != 1 {
		t.Errorf("expected 1 cache hit, got %d", stats.CacheHitCount)
	}
	if stats.SongsIndexed != 1 {
		t.Errorf("expected 1 indexed song, got %d", stats.SongsIndexed)
	}
	if len(stats.TopMatchedSongs) != 1 {
		t.Fatalf("expected one leaderboard entry, got %d", len(stats.TopMatchedSongs))
	}
	if stats.TopMatchedSongs[0].SongID != 7 || stats.TopMatchedSongs[0].Count != 2 {
		t.Errorf("unexpected leaderboard entry: %+v", stats.TopMatchedSongs[0])
	}
}

func TestAggregatorLeaderboardOrderAndBound(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < 5; i++ {
		for j := 0; j <= i; j++ {
			feed(t, a, Envelope{Type: TypeMatch, Match: &MatchEvent{
				ResultCount: 1, TopSongID: int64(i + 1), TopSongTitle: "S",
			}})
		}
	}

	stats := a.Snapshot(3)
	if len(stats.TopMatchedSongs) != 3 {
		t.Fatalf("expected leaderboard capped at 3, got %d", len(stats.TopMatchedSongs))
	}
	for i := 1; i < len(stats.TopMatchedSongs); i++ {
		if stats.TopMatchedSongs[i-1].Count < stats.TopMatchedSongs[i].Count {
			t.Errorf("leaderboard out of order at %d", i)
		}
	}
	if stats.TopMatchedSongs[0].SongID != 5 {
		t.Errorf("expected song 5 on top, got %d", stats.TopMatchedSongs[0].SongID)
	}
}

func TestAggregatorPercentiles(t *testing.T) {
	a := NewAggregator()
	for i := 1; i <= 100; i++ {
		feed(t, a, Envelope{Type: TypeMatch, Match: &MatchEvent{ResultCount: 0, DurationMillis: int64(i)}})
	}
	stats := a.Snapshot(0)
	if stats.MatchLatencyP50 < 45 || stats.MatchLatencyP50 > 55 {
		t.Errorf("p50 out of range: %d", stats.MatchLatencyP50)
	}
	if stats.MatchLatencyP95 < 90 || stats.MatchLatencyP95 > 100 {
		t.Errorf("p95 out of range: %d", stats.MatchLatencyP95)
	}
	if stats.MatchLatencyP99 < stats.MatchLatencyP95 {
		t.Errorf("p99 %d below p95 %d", stats.MatchLatencyP99, stats.MatchLatencyP95)
	}
}
