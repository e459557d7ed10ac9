// Package catalog provides the durable song store: metadata records keyed
// by song id, an ordered registry of all ids for pagination, and an atomic
// id allocator. Two implementations exist: Redis (primary) and an in-memory
// store for tests and embedded deployments.
package catalog

import (
	"context"

	"github.com/alakazam-audio/alakazam/internal/song"
)

// Store is the catalog contract.
//
// AllocateID must be safe under concurrent callers across multiple server
// instances: no two callers ever receive the same value, and values are
// strictly increasing. Allocated ids that are never registered (because a
// later indexing step failed) are simply gaps — ids are opaque keys, not a
// dense count.
type Store interface {
	// AllocateID returns a fresh, strictly-increasing unique song id.
	AllocateID(ctx context.Context) (int64, error)

	// Put durably stores metadata keyed by id, overwriting any existing
	// record (create-or-replace, no partial update).
	Put(ctx context.Context, id int64, s song.Song) error

	// Get returns the stored song and true, or the zero Song and false when
	// the id has no record. A missing id is not an error.
	Get(ctx context.Context, id int64) (song.Song, bool, error)

	// Register appends id to the ordered registry used for pagination.
	// Insertion order is id creation order.
	Register(ctx context.Context, id int64) error

	// ListIDs returns registered ids in ascending creation order starting
	// at offset, at most limit entries. It returns fewer than limit
	// (possibly zero) when the registry is exhausted.
	ListIDs(ctx context.Context, offset, limit int64) ([]int64, error)

	// Count returns the total number of registered ids.
	Count(ctx context.Context) (int64, error)
}
