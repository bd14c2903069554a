// Package postgres is the durable store: the read-only currency-pair
// catalog, per-(symbol, side) tick tables, and per-symbol candle
// tables, over Postgres via lib/pq. Each call builds its statement
// with the per-symbol table name and executes it directly; no
// prepared statements or transactions are used.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Store wraps the durable database connection.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres using the given connection parameters.
func Open(host, port, user, password, database string) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, database)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
