package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alakazam-audio/alakazam/internal/song"
	apperrors "github.com/alakazam-audio/alakazam/pkg/errors"
	pkgredis "github.com/alakazam-audio/alakazam/pkg/redis"
)

// Redis key layout:
//
//	song_counter     INCR counter for id allocation
//	song:{id}        JSON-encoded song record
//	songs:all        ZSET registry of every id, score = id
const (
	counterKey  = "song_counter"
	songKeyFmt  = "song:%d"
	registryKey = "songs:all"
)

// RedisStore is the Redis-backed catalog.
type RedisStore struct {
	client *pkgredis.Client
	logger *slog.Logger
}

// NewRedisStore creates a catalog store over the given Redis client.
func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		logger: slog.Default().With("component", "catalog"),
	}
}

// AllocateID issues a Redis INCR on the shared counter. INCR is atomic on
// the server, so concurrent allocators on any number of instances never
// collide.
func (s *RedisStore) AllocateID(ctx context.Context) (int64, error) {
	id, err := s.client.Incr(ctx, counterKey)
	if err != nil {
		return 0, fmt.Errorf("%w: allocating song id: %v", apperrors.ErrStoreUnavailable, err)
	}
	return id, nil
}

func (s *RedisStore) Put(ctx context.Context, id int64, sg song.Song) error {
	data, err := json.Marshal(sg)
	if err != nil {
		return fmt.Errorf("marshaling song %d: %w", id, err)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(songKeyFmt, id), data, 0); err != nil {
		return fmt.Errorf("%w: storing song %d: %v", apperrors.ErrStoreUnavailable, id, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id int64) (song.Song, bool, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(songKeyFmt, id))
	if err != nil {
		if pkgredis.IsNilError(err) {
			return song.Song{}, false, nil
		}
		return song.Song{}, false, fmt.Errorf("%w: fetching song %d: %v", apperrors.ErrStoreUnavailable, id, err)
	}
	var sg song.Song
	if err := json.Unmarshal([]byte(data), &sg); err != nil {
		return song.Song{}, false, fmt.Errorf("decoding song %d: %w", id, err)
	}
	return sg, true, nil
}

// Register scores the registry entry by id, so ZRANGE returns ids in
// allocation order.
func (s *RedisStore) Register(ctx context.Context, id int64) error {
	if err := s.client.ZAdd(ctx, registryKey, float64(id), id); err != nil {
		return fmt.Errorf("%w: registering song %d: %v", apperrors.ErrStoreUnavailable, id, err)
	}
	return nil
}

func (s *RedisStore) ListIDs(ctx context.Context, offset, limit int64) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	// ZRANGE stop is inclusive.
	members, err := s.client.ZRange(ctx, registryKey, offset, offset+limit-1)
	if err != nil {
		return nil, fmt.Errorf("%w: listing song ids: %v", apperrors.ErrStoreUnavailable, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.logger.Error("registry holds non-numeric member, skipping", "member", m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, registryKey)
	if err != nil {
		return 0, fmt.Errorf("%w: counting songs: %v", apperrors.ErrStoreUnavailable, err)
	}
	return n, nil
}
