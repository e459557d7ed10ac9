package postings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	apperrors "github.com/alakazam-audio/alakazam/pkg/errors"
	pkgredis "github.com/alakazam-audio/alakazam/pkg/redis"
)

// hashKeyFmt is the key layout: hash:{value} -> SET of song ids.
const hashKeyFmt = "hash:%d"

// RedisIndex is the Redis-backed posting index. SADD gives idempotent
// appends and SMEMBERS duplicate-free lookups for free.
type RedisIndex struct {
	client *pkgredis.Client
	logger *slog.Logger
}

// NewRedisIndex creates a posting index over the given Redis client.
func NewRedisIndex(client *pkgredis.Client) *RedisIndex {
	return &RedisIndex{
		client: client,
		logger: slog.Default().With("component", "posting-index"),
	}
}

func (ix *RedisIndex) Append(ctx context.Context, hash int64, songID int64) error {
	if err := ix.client.SAdd(ctx, fmt.Sprintf(hashKeyFmt, hash), songID); err != nil {
		return fmt.Errorf("%w: appending posting %d->%d: %v", apperrors.ErrStoreUnavailable, hash, songID, err)
	}
	return nil
}

func (ix *RedisIndex) PostingsFor(ctx context.Context, hash int64) ([]int64, error) {
	members, err := ix.client.SMembers(ctx, fmt.Sprintf(hashKeyFmt, hash))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching postings for %d: %v", apperrors.ErrStoreUnavailable, hash, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			ix.logger.Error("posting set holds non-numeric member, skipping", "hash", hash, "member", m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
