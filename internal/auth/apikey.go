// Package auth provides API key verification backed by Postgres and a
// per-key token-bucket rate limiter.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alakazam-audio/alakazam/pkg/errors"
	"github.com/alakazam-audio/alakazam/pkg/postgres"
)

// Key is a verified API key record.
type Key struct {
	ID        int64
	Name      string
	RateLimit int // requests per minute, 0 = default
	CreatedAt time.Time
	RevokedAt sql.NullTime
}

// KeyStore verifies API keys against the api_keys table. Keys are stored as
// SHA-256 hex digests; the plaintext never touches the database. Verified
// keys are cached in memory briefly to keep Postgres off the hot path.
type KeyStore struct {
	db       *postgres.Client
	logger   *slog.Logger
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedKey
}

type cachedKey struct {
	key     Key
	expires time.Time
}

// NewKeyStore creates a KeyStore over the given Postgres client.
func NewKeyStore(db *postgres.Client, cacheTTL time.Duration) *KeyStore {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &KeyStore{
		db:       db,
		logger:   slog.Default().With("component", "apikey-store"),
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedKey),
	}
}

// HashKey returns the hex SHA-256 digest of a plaintext API key.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify checks a plaintext API key and returns its record. Revoked and
// unknown keys both return ErrUnauthorized without distinguishing the two.
func (s *KeyStore) Verify(ctx context.Context, plaintext string) (Key, error) {
	digest := HashKey(plaintext)

	s.mu.RLock()
	if entry, ok := s.cache[digest]; ok && time.Now().Before(entry.expires) {
		s.mu.RUnlock()
		return entry.key, nil
	}
	s.mu.RUnlock()

	var key Key
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, rate_limit, created_at, revoked_at
		 FROM api_keys WHERE key_hash = $1`,
		digest,
	)
	if err := row.Scan(&key.ID, &key.Name, &key.RateLimit, &key.CreatedAt, &key.RevokedAt); err != nil {
		if err == sql.ErrNoRows {
			return Key{}, errors.ErrUnauthorized
		}
		return Key{}, fmt.Errorf("querying api key: %w", err)
	}
	if key.RevokedAt.Valid {
		return Key{}, errors.ErrUnauthorized
	}

	s.mu.Lock()
	s.cache[digest] = cachedKey{key: key, expires: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
	return key, nil
}

// Create inserts a new API key from its plaintext and returns the record.
func (s *KeyStore) Create(ctx context.Context, name, plaintext string, rateLimit int) (Key, error) {
	var key Key
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO api_keys (key_hash, name, rate_limit, created_at)
			 VALUES ($1, $2, $3, NOW())
			 RETURNING id, name, rate_limit, created_at`,
			HashKey(plaintext), name, rateLimit,
		)
		return row.Scan(&key.ID, &key.Name, &key.RateLimit, &key.CreatedAt)
	})
	if err != nil {
		return Key{}, fmt.Errorf("creating api key: %w", err)
	}
	s.logger.Info("api key created", "key_id", key.ID, "name", name)
	return key, nil
}

// Revoke marks a key revoked. Cached entries age out within the cache TTL.
func (s *KeyStore) Revoke(ctx context.Context, id int64) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoking api key %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: api key %d not found or already revoked", errors.ErrInvalidInput, id)
	}
	s.logger.Info("api key revoked", "key_id", id)
	return nil
}
