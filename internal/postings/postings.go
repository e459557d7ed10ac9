// Package postings implements the inverted fingerprint index: a mapping
// from hash value to the set of song ids containing that hash. Appends are
// idempotent ((hash, songID) pairs are stored at most once) and postings
// are never individually removed — the index is append-only.
package postings

import "context"

// Index is the posting-index contract. Mutation is key-scoped: appends for
// different hash values are independent and require no cross-hash
// atomicity.
type Index interface {
	// Append idempotently adds songID to the posting set for hash.
	Append(ctx context.Context, hash int64, songID int64) error

	// PostingsFor returns the (possibly empty) set of song ids containing
	// hash. The result contains no duplicates.
	PostingsFor(ctx context.Context, hash int64) ([]int64, error)
}
