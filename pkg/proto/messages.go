// Package proto defines the message types exchanged with the external
// fingerprint generator over the JSON-over-TCP RPC layer (see pkg/rpc).
//
// The fingerprinter is a separate process; these types mirror its wire
// format and carry no behaviour of their own.
package proto

// SongFingerprintRequest asks the fingerprinter to compute the full
// fingerprint of a complete song.
type SongFingerprintRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

// SongFingerprintResponse carries the hash set plus the metadata the
// catalog stores alongside it.
type SongFingerprintResponse struct {
	Hashes     []int64 `json:"hashes"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	HashCount  int     `json:"hash_count"`
}

// QueryFingerprintRequest asks the fingerprinter to compute the fingerprint
// of an unknown audio clip for matching.
type QueryFingerprintRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

// QueryFingerprintResponse carries the ordered query hash sequence.
// Duplicate hash values are preserved; the matcher's scoring depends on
// them.
type QueryFingerprintResponse struct {
	Hashes   []int64 `json:"hashes"`
	Duration float64 `json:"duration"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}
