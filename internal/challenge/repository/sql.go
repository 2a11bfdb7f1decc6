package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"daily-trivia/internal/challenge/domain"
)

// Dialect selects placeholder syntax and JSON column handling for SQLRepository.
type Dialect int

const (
	// Postgres uses $n placeholders and JSONB columns.
	Postgres Dialect = iota
	// SQLite uses ? placeholders and TEXT columns holding JSON.
	SQLite
)

type sqlQueries struct {
	getByDate string
	upsert    string
}

var dialectQueries = map[Dialect]sqlQueries{
	Postgres: {
		getByDate: `SELECT date, answer, alternatives, facts, category FROM challenges WHERE date = $1`,
		upsert: `INSERT INTO challenges (date, answer, alternatives, facts, category)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5)
ON CONFLICT (date) DO UPDATE SET
	answer = EXCLUDED.answer,
	alternatives = EXCLUDED.alternatives,
	facts = EXCLUDED.facts,
	category = EXCLUDED.category,
	updated_at = now()`,
	},
	SQLite: {
		getByDate: `SELECT date, answer, alternatives, facts, category FROM challenges WHERE date = ?`,
		upsert: `INSERT INTO challenges (date, answer, alternatives, facts, category)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (date) DO UPDATE SET
	answer = excluded.answer,
	alternatives = excluded.alternatives,
	facts = excluded.facts,
	category = excluded.category,
	updated_at = CURRENT_TIMESTAMP`,
	},
}

// SQLRepository implements Repository on database/sql (pgx for Postgres, modernc for SQLite).
type SQLRepository struct {
	db *sql.DB
	q  sqlQueries
}

// NewSQLRepository returns a challenge repository that uses db with the given dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	q, ok := dialectQueries[dialect]
	if !ok {
		q = dialectQueries[Postgres]
	}
	return &SQLRepository{db: db, q: q}
}

// GetByDate returns the challenge for date, or nil if not found. The internal id column is never selected.
func (r *SQLRepository) GetByDate(ctx context.Context, date string) (*domain.Challenge, error) {
	var (
		c            domain.Challenge
		alternatives []byte
		facts        []byte
	)
	err := r.db.QueryRowContext(ctx, r.q.getByDate, date).Scan(&c.Date, &c.Answer, &alternatives, &facts, &c.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := decodeJSONColumn(alternatives, &c.Alternatives); err != nil {
		return nil, fmt.Errorf("challenge %s alternatives: %w", date, err)
	}
	if err := decodeJSONColumn(facts, &c.Facts); err != nil {
		return nil, fmt.Errorf("challenge %s facts: %w", date, err)
	}
	for i, f := range c.Facts {
		if !f.Content.IsText() && f.Content.Entries() == nil {
			return nil, fmt.Errorf("challenge %s fact %d: %w", date, i, domain.ErrEmptyContent)
		}
	}
	return &c, nil
}

// Upsert persists c, replacing any challenge stored for c.Date.
func (r *SQLRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	if c == nil || c.Date == "" {
		return errors.New("challenge date is required")
	}
	alternatives, err := encodeJSONColumn(c.Alternatives)
	if err != nil {
		return err
	}
	facts, err := encodeJSONColumn(c.Facts)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.q.upsert, c.Date, c.Answer, alternatives, facts, c.Category)
	return err
}

// PingContext reports whether the underlying database is reachable. Used by health checks.
func (r *SQLRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func decodeJSONColumn(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// encodeJSONColumn returns a string so both pgx (jsonb cast) and SQLite (TEXT) accept it; nil encodes as [].
func encodeJSONColumn[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
