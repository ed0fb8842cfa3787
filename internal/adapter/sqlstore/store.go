// Package sqlstore implements the character repository over database/sql.
// The postgres and sqlite packages supply the driver and a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"textrpg/internal/domain"
)

// Dialect captures the driver-specific behaviour the store needs.
type Dialect struct {
	Name string
	// IsUniqueViolation reports whether err was raised by a unique index.
	IsUniqueViolation func(err error) bool
}

// Store wraps a *sql.DB and implements domain.CharacterRepository.
type Store struct {
	sql     *sql.DB
	dialect Dialect
}

var _ domain.CharacterRepository = (*Store)(nil)

// New wraps db. It does not migrate; call Migrate.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{sql: db, dialect: dialect}
}

// Dialect returns the dialect name.
func (s *Store) Dialect() string { return s.dialect.Name }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sql.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS characters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			level BIGINT NOT NULL CHECK(level >= 1),
			experience_current BIGINT NOT NULL,
			experience_max BIGINT NOT NULL,
			health_current BIGINT NOT NULL,
			health_max BIGINT NOT NULL,
			strength BIGINT NOT NULL,
			dexterity BIGINT NOT NULL,
			intelligence BIGINT NOT NULL,
			luck BIGINT NOT NULL,
			version BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_characters_name ON characters(name);`,
		`CREATE INDEX IF NOT EXISTS idx_characters_level ON characters(level);`,
		`CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters(owner_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Save inserts c when its version is zero, otherwise it updates the row only
// while the stored version still equals c.Version.
func (s *Store) Save(ctx context.Context, c domain.Character) (domain.Character, error) {
	r := toRow(c)
	r.Version = c.Version + 1

	if c.Version == 0 {
		_, err := s.sql.ExecContext(ctx,
			"INSERT INTO characters("+columns+") VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);",
			r.ID, r.Name, r.Level, r.ExperienceCurrent, r.ExperienceMax, r.HealthCurrent, r.HealthMax,
			r.Strength, r.Dexterity, r.Intelligence, r.Luck, r.Version, r.CreatedAt, r.UpdatedAt, r.OwnerID,
		)
		if err != nil {
			return domain.Character{}, s.writeError(err)
		}
		return r.toDomain()
	}

	res, err := s.sql.ExecContext(ctx,
		"UPDATE characters SET name=$1, level=$2, experience_current=$3, experience_max=$4, health_current=$5, health_max=$6, "+
			"strength=$7, dexterity=$8, intelligence=$9, luck=$10, version=$11, updated_at=$12 WHERE id=$13 AND version=$14;",
		r.Name, r.Level, r.ExperienceCurrent, r.ExperienceMax, r.HealthCurrent, r.HealthMax,
		r.Strength, r.Dexterity, r.Intelligence, r.Luck, r.Version, r.UpdatedAt, r.ID, c.Version,
	)
	if err != nil {
		return domain.Character{}, s.writeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Character{}, err
	}
	if n == 0 {
		return domain.Character{}, domain.ErrStaleVersion
	}
	return r.toDomain()
}

func (s *Store) writeError(err error) error {
	if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrDuplicateName, err)
	}
	return err
}

// FindByID returns nil when no row matches.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Character, error) {
	return s.findOne(ctx, "SELECT "+columns+" FROM characters WHERE id=$1;", id)
}

// FindByName returns nil when no row matches.
func (s *Store) FindByName(ctx context.Context, name string) (*domain.Character, error) {
	return s.findOne(ctx, "SELECT "+columns+" FROM characters WHERE name=$1;", name)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*domain.Character, error) {
	var r characterRow
	if err := s.sql.QueryRowContext(ctx, query, arg).Scan(r.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ExistsByID(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM characters WHERE id=$1);", id)
}

func (s *Store) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM characters WHERE name=$1);", name)
}

func (s *Store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	err := s.sql.QueryRowContext(ctx, query, arg).Scan(&ok)
	return ok, err
}

// DeleteByID reports whether a row was removed.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.sql.ExecContext(ctx, "DELETE FROM characters WHERE id=$1;", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.sql.QueryRowContext(ctx, "SELECT COUNT(1) FROM characters;").Scan(&n)
	return n, err
}

// FindAll streams every character ordered by creation time.
func (s *Store) FindAll(ctx context.Context) iter.Seq2[domain.Character, error] {
	return s.stream(ctx, "SELECT "+columns+" FROM characters ORDER BY created_at, id;")
}

// FindByLevelRange streams characters with minLevel <= level <= maxLevel.
func (s *Store) FindByLevelRange(ctx context.Context, minLevel, maxLevel int) iter.Seq2[domain.Character, error] {
	return s.stream(ctx,
		"SELECT "+columns+" FROM characters WHERE level >= $1 AND level <= $2 ORDER BY level, created_at, id;",
		minLevel, maxLevel)
}

// FindByOwner streams the characters owned by ownerID ordered by creation
// time.
func (s *Store) FindByOwner(ctx context.Context, ownerID string) iter.Seq2[domain.Character, error] {
	return s.stream(ctx, "SELECT "+columns+" FROM characters WHERE owner_id=$1 ORDER BY created_at, id;", ownerID)
}

// stream runs query when iteration starts and holds the cursor open until
// the loop ends.
func (s *Store) stream(ctx context.Context, query string, args ...any) iter.Seq2[domain.Character, error] {
	return func(yield func(domain.Character, error) bool) {
		rows, err := s.sql.QueryContext(ctx, query, args...)
		if err != nil {
			yield(domain.Character{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var r characterRow
			if err := rows.Scan(r.dest()...); err != nil {
				yield(domain.Character{}, err)
				return
			}
			c, err := r.toDomain()
			if err != nil {
				yield(domain.Character{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.Character{}, err)
		}
	}
}
