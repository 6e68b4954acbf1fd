package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

type PostgresStore struct {
	*sqlStore
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{sqlStore: &sqlStore{db: db, placeholder: dollarPlaceholder}}
	if err := s.ensureTable(ctx, "BYTEA"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
