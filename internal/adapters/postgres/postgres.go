// Package postgres implements ports.StoragePort on a single versioned
// key-value table. It keeps the aggregation rule portable across
// storage engines: the same compare-and-swap contract the badger
// adapter provides, expressed as optimistic UPDATE ... WHERE version.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS foreman_kv (
	key     TEXT PRIMARY KEY,
	value   BYTEA NOT NULL,
	version BIGINT NOT NULL
)`

// serialization_failure; the transaction must be retried.
const sqlstateSerializationFailure = "40001"

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger.With("component", "storage"),
	}, nil
}

func (s *Store) Get(key string) ([]byte, int64, bool, error) {
	var value []byte
	var version int64
	err := s.pool.QueryRow(context.Background(),
		`SELECT value, version FROM foreman_kv WHERE key = $1`, key,
	).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return value, version, true, nil
}

func (s *Store) Put(key string, value []byte, version int64) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		return tx.Put(key, value, version)
	})
}

func (s *Store) Delete(key string) error {
	_, err := s.pool.Exec(context.Background(),
		`DELETE FROM foreman_kv WHERE key = $1`, key)
	return err
}

func (s *Store) Exists(key string) (bool, error) {
	_, _, exists, err := s.Get(key)
	return exists, err
}

func (s *Store) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	return listByPrefix(context.Background(), s.pool, prefix)
}

func (s *Store) GetNext(prefix string) (string, []byte, bool, error) {
	var key string
	var value []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT key, value FROM foreman_kv WHERE key LIKE $1 || '%' ORDER BY key LIMIT 1`, prefix,
	).Scan(&key, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return key, value, true, nil
}

func (s *Store) CountPrefix(prefix string) (int, error) {
	var count int
	err := s.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM foreman_kv WHERE key LIKE $1 || '%'`, prefix,
	).Scan(&count)
	return count, err
}

func (s *Store) RunInTransaction(fn func(tx ports.Transaction) error) error {
	ctx := context.Background()

	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}

	if err := fn(&sqlTx{ctx: ctx, tx: pgtx}); err != nil {
		_ = pgtx.Rollback(ctx)
		return mapConflict(err)
	}

	if err := pgtx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type sqlTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *sqlTx) Get(key string) ([]byte, int64, bool, error) {
	var value []byte
	var version int64
	err := t.tx.QueryRow(t.ctx,
		`SELECT value, version FROM foreman_kv WHERE key = $1 FOR UPDATE`, key,
	).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return value, version, true, nil
}

func (t *sqlTx) Put(key string, value []byte, version int64) error {
	if version == 0 {
		tag, err := t.tx.Exec(t.ctx,
			`INSERT INTO foreman_kv (key, value, version) VALUES ($1, $2, 1) ON CONFLICT (key) DO NOTHING`,
			key, value)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			_, current, _, err := t.Get(key)
			if err != nil {
				return err
			}
			return domain.NewVersionMismatchError(key, 0, current)
		}
		return nil
	}

	tag, err := t.tx.Exec(t.ctx,
		`UPDATE foreman_kv SET value = $2, version = version + 1 WHERE key = $1 AND version = $3`,
		key, value, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		_, current, _, err := t.Get(key)
		if err != nil {
			return err
		}
		return domain.NewVersionMismatchError(key, version, current)
	}
	return nil
}

func (t *sqlTx) Delete(key string) error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM foreman_kv WHERE key = $1`, key)
	return err
}

func (t *sqlTx) Exists(key string) (bool, error) {
	_, _, exists, err := t.Get(key)
	return exists, err
}

func (t *sqlTx) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	return listByPrefix(t.ctx, t.tx, prefix)
}

func listByPrefix(ctx context.Context, q querier, prefix string) ([]ports.KeyValueVersion, error) {
	rows, err := q.Query(ctx,
		`SELECT key, value, version FROM foreman_kv WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ports.KeyValueVersion
	for rows.Next() {
		var kv ports.KeyValueVersion
		if err := rows.Scan(&kv.Key, &kv.Value, &kv.Version); err != nil {
			return nil, err
		}
		result = append(result, kv)
	}
	return result, rows.Err()
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateSerializationFailure {
		return domain.ErrConflict
	}
	return err
}
