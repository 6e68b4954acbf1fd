package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

type SqliteStore struct {
	*sqlStore
	path string
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	if path == "" {
		path = "parasite.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &SqliteStore{sqlStore: &sqlStore{db: db, placeholder: questionPlaceholder}, path: path}
	if err := s.ensureTable(context.Background(), "BLOB"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
