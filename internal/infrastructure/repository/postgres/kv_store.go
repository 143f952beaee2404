package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

// KVStore is the durable secondary substrate for session state, kept in state_kv.
type KVStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO state_kv (key, value, expires_at, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
`, key, value, expiresAt, now)
	if err != nil {
		return fmt.Errorf("put state key: %w", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT value
FROM state_kv
WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
`, key, s.now().UTC())

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get state key", fmt.Errorf("key %q", key))
		}
		return nil, fmt.Errorf("get state key: %w", err)
	}
	return value, nil
}

func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = key
	}
	query := "DELETE FROM state_kv WHERE key IN (" + strings.Join(placeholders, ",") + ")"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete state keys: %w", err)
	}
	return nil
}

func (s *KVStore) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete state prefix", errors.New("empty prefix"))
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM state_kv WHERE key LIKE $1 ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return fmt.Errorf("delete state prefix: %w", err)
	}
	return nil
}

// PurgeExpired removes keys whose expiry has passed and returns how many were removed.
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM state_kv WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired state rows affected: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
