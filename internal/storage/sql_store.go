package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlStore keeps one row per key. Dialects differ only in placeholder
// syntax and the value column type.
type sqlStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func (s *sqlStore) ensureTable(ctx context.Context, valueType string) error {
	ddl := `CREATE TABLE IF NOT EXISTS parasite_state (
		bucket TEXT PRIMARY KEY,
		payload ` + valueType + ` NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	holders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		holders[i] = s.placeholder(i + 1)
		args[i] = k
	}
	query := `SELECT bucket, payload FROM parasite_state WHERE bucket IN (` + strings.Join(holders, ",") + `)`
	return s.query(ctx, query, args...)
}

func (s *sqlStore) GetAll(ctx context.Context) (map[string][]byte, error) {
	return s.query(ctx, `SELECT bucket, payload FROM parasite_state`)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *sqlStore) Set(ctx context.Context, entries map[string][]byte) (retErr error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	stmt := `INSERT INTO parasite_state(bucket,payload) VALUES(` + s.placeholder(1) + `,` + s.placeholder(2) +
		`) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`
	for k, v := range entries {
		if _, err = tx.ExecContext(ctx, stmt, k, v); err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	holders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		holders[i] = s.placeholder(i + 1)
		args[i] = k
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM parasite_state WHERE bucket IN (`+strings.Join(holders, ",")+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
