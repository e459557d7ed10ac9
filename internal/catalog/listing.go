package catalog

import (
	"context"
	"fmt"

	"github.com/alakazam-audio/alakazam/internal/song"
)

// ListPage returns the given page of songs in ascending id order. It fetches
// the id range [page*pageSize, page*pageSize+pageSize) from the registry and
// hydrates each id; ids that no longer resolve to a record are skipped
// rather than failing the page. A pageSize of zero yields an empty page.
func ListPage(ctx context.Context, store Store, page, pageSize int64) ([]song.Song, error) {
	if page < 0 || pageSize < 0 {
		return nil, fmt.Errorf("page and pageSize must be non-negative")
	}
	if pageSize == 0 {
		return []song.Song{}, nil
	}
	ids, err := store.ListIDs(ctx, page*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing page %d: %w", page, err)
	}
	songs := make([]song.Song, 0, len(ids))
	for _, id := range ids {
		sg, ok, err := store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hydrating song %d: %w", id, err)
		}
		if !ok {
			continue
		}
		songs = append(songs, sg)
	}
	return songs, nil
}
