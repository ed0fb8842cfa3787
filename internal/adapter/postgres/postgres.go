// Package postgres opens the PostgreSQL-backed character store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"textrpg/internal/adapter/sqlstore"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect describes PostgreSQL to the shared store.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	IsUniqueViolation: isUniqueViolation,
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*sqlstore.Store, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	store := New(s)
	if err := store.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open connection without pinging or migrating.
func New(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, Dialect)
}
