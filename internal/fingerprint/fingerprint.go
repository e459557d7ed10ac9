// Package fingerprint abstracts the external fingerprint generator. The
// generator is a separate process reached over RPC; this package treats it
// as a pure function over audio samples with "unavailable" as its only
// interesting failure mode.
package fingerprint

import "context"

// SongFingerprint is the generator's output for a complete song.
type SongFingerprint struct {
	Hashes     []int64
	Duration   float64
	SampleRate int
	HashCount  int
}

// QueryFingerprint is the generator's output for an unknown clip. Hash order
// and duplicates are preserved — the matcher's scoring depends on both.
type QueryFingerprint struct {
	Hashes   []int64
	Duration float64
}

// Generator produces fingerprints from raw audio samples.
type Generator interface {
	GenerateSongFingerprint(ctx context.Context, samples []float32, sampleRate int) (SongFingerprint, error)
	GenerateQueryFingerprint(ctx context.Context, samples []float32, sampleRate int) (QueryFingerprint, error)
}
