//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"esp32-devkit-go/services/console"
)

// Store keeps readings in a Postgres table, promoted to a TimescaleDB
// hypertable when the extension is available.
type Store struct {
	conn  *pgx.Conn
	table string // sanitized identifier
	name  string
}

// OpenStore connects to dsn. Readings are recorded under device name.
func OpenStore(ctx context.Context, dsn, table, name string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{conn: conn, table: pgx.Identifier{table}.Sanitize(), name: name}, nil
}

func (s *Store) Close() error {
	return s.conn.Close(context.Background())
}

// InitializeTable creates the readings table if it does not exist.
func (s *Store) InitializeTable(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, createTableSQL(s.table))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := s.conn.Exec(ctx, `SELECT create_hypertable('`+s.table+`', 'time', if_not_exists => TRUE)`); err != nil {
		log.Printf("Table %s kept as a plain table: %v", s.table, err)
	}
	return nil
}

// Record implements Sink.
func (s *Store) Record(at time.Time, r console.Reading) error {
	_, err := s.conn.Exec(context.Background(), insertSQL(s.table), at, s.name, r.Label, r.Centi)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		time      TIMESTAMPTZ NOT NULL,
		device_id TEXT        NOT NULL,
		label     TEXT        NOT NULL,
		centi     INTEGER     NOT NULL
	)`
}

func insertSQL(table string) string {
	return `INSERT INTO ` + table + ` (time, device_id, label, centi) VALUES ($1, $2, $3, $4)`
}
