// Package repository persists daily challenges in Postgres, SQLite or MongoDB.
package repository

import (
	"context"

	"daily-trivia/internal/challenge/domain"
)

// Repository defines persistence for challenges. Records are keyed by calendar date (YYYY-MM-DD).
type Repository interface {
	// GetByDate returns the challenge for date, or nil if none exists.
	// It returns an error only for store failures, not for missing records.
	GetByDate(ctx context.Context, date string) (*domain.Challenge, error)
	// Upsert inserts the challenge or replaces the one stored for the same date.
	Upsert(ctx context.Context, c *domain.Challenge) error
}
