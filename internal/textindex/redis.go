package textindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	apperrors "github.com/alakazam-audio/alakazam/pkg/errors"
	pkgredis "github.com/alakazam-audio/alakazam/pkg/redis"
)

// Key layout: title:{word}, artist:{word}, genre:{word} -> SET of song ids.
const (
	titleKeyFmt  = "title:%s"
	artistKeyFmt = "artist:%s"
	genreKeyFmt  = "genre:%s"
)

// RedisIndex is the Redis-backed text index.
type RedisIndex struct {
	client *pkgredis.Client
	logger *slog.Logger
}

// NewRedisIndex creates a text index over the given Redis client.
func NewRedisIndex(client *pkgredis.Client) *RedisIndex {
	return &RedisIndex{
		client: client,
		logger: slog.Default().With("component", "text-index"),
	}
}

func (ix *RedisIndex) IndexSong(ctx context.Context, songID int64, title, artist, genre string) error {
	for _, tok := range titleTokens(title) {
		if err := ix.client.SAdd(ctx, fmt.Sprintf(titleKeyFmt, tok), songID); err != nil {
			return fmt.Errorf("%w: indexing title token %q: %v", apperrors.ErrStoreUnavailable, tok, err)
		}
	}
	for _, tok := range artistTokens(artist) {
		if err := ix.client.SAdd(ctx, fmt.Sprintf(artistKeyFmt, tok), songID); err != nil {
			return fmt.Errorf("%w: indexing artist token %q: %v", apperrors.ErrStoreUnavailable, tok, err)
		}
	}
	for _, tok := range genreTokens(genre) {
		if err := ix.client.SAdd(ctx, fmt.Sprintf(genreKeyFmt, tok), songID); err != nil {
			return fmt.Errorf("%w: indexing genre token %q: %v", apperrors.ErrStoreUnavailable, tok, err)
		}
	}
	return nil
}

func (ix *RedisIndex) SearchByText(ctx context.Context, query string) ([]int64, error) {
	seen := make(map[int64]struct{})
	for _, tok := range queryTokens(query) {
		for _, keyFmt := range []string{titleKeyFmt, artistKeyFmt, genreKeyFmt} {
			members, err := ix.client.SMembers(ctx, fmt.Sprintf(keyFmt, tok))
			if err != nil {
				return nil, fmt.Errorf("%w: searching token %q: %v", apperrors.ErrStoreUnavailable, tok, err)
			}
			for _, m := range members {
				id, err := strconv.ParseInt(m, 10, 64)
				if err != nil {
					ix.logger.Error("text index holds non-numeric member, skipping", "token", tok, "member", m)
					continue
				}
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
