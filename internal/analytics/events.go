// Package analytics publishes match and index events to Kafka and keeps a
// rolling in-memory aggregate served by the stats endpoint.
package analytics

import "time"

// Event types carried on the analytics topic.
const (
	TypeMatch = "match"
	TypeIndex = "index"
)

// Envelope wraps every analytics event with its type for consumer-side
// dispatch.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Match     *MatchEvent `json:"match,omitempty"`
	Index     *IndexEvent `json:"index,omitempty"`
}

// MatchEvent records the outcome of one match query.
type MatchEvent struct {
	RequestID        string  `json:"requestId"`
	TotalQueryHashes int     `json:"totalQueryHashes"`
	ResultCount      int     `json:"resultCount"`
	TopSongID        int64   `json:"topSongId,omitempty"`
	TopSongTitle     string  `json:"topSongTitle,omitempty"`
	TopConfidence    float64 `json:"topConfidence,omitempty"`
	CacheHit         bool    `json:"cacheHit"`
	DurationMillis   int64   `json:"durationMillis"`
}

// IndexEvent records one song ingestion.
type IndexEvent struct {
	RequestID      string `json:"requestId"`
	SongID         int64  `json:"songId"`
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	HashCount      int    `json:"hashCount"`
	DurationMillis int64  `json:"durationMillis"`
}
