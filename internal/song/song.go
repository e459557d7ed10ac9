// Package song defines the catalog's core domain types.
package song

import "time"

// Song is a catalog entry. The ID is allocated once at indexing time and
// never changes; everything else is set from the upload request and the
// fingerprint metadata. There is no update operation — re-uploading a song
// creates a new entry.
type Song struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Genre      string    `json:"genre,omitempty"`
	Duration   float64   `json:"duration"`
	SampleRate int       `json:"sample_rate"`
	HashCount  int       `json:"hash_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Metadata is the caller-supplied part of a Song, before an id and upload
// timestamp exist.
type Metadata struct {
	Title      string
	Artist     string
	Genre      string
	Duration   float64
	SampleRate int
}
