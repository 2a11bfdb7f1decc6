// Package store opens the challenge repository selected by STORE_DRIVER.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daily-trivia/internal/challenge/repository"
	"daily-trivia/internal/config"
	"daily-trivia/internal/db"
)

// connectTimeout bounds dialing and index creation at startup.
const connectTimeout = 10 * time.Second

// Pinger checks store connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Store is an open challenge repository plus what the process needs to probe and close it.
type Store struct {
	Driver     string
	Repository repository.Repository
	Pinger     Pinger
	closeFn    func(context.Context) error
}

// Open connects to the configured store. Caller must Close it.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("store: DATABASE_URL is required for the postgres driver")
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("store: postgres: %w", err)
		}
		return &Store{
			Driver:     cfg.StoreDriver,
			Repository: repository.NewSQLRepository(conn, repository.Postgres),
			Pinger:     conn,
			closeFn:    func(context.Context) error { return conn.Close() },
		}, nil

	case config.StoreDriverSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("store: sqlite: %w", err)
		}
		return &Store{
			Driver:     cfg.StoreDriver,
			Repository: repository.NewSQLRepository(conn, repository.SQLite),
			Pinger:     conn,
			closeFn:    func(context.Context) error { return conn.Close() },
		}, nil

	case config.StoreDriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := repository.ConnectMongo(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("store: mongo: %w", err)
		}
		repo := repository.NewMongoRepository(client, cfg.MongoDatabase)
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("store: mongo indexes: %w", err)
		}
		return &Store{
			Driver:     cfg.StoreDriver,
			Repository: repo,
			Pinger:     repo,
			closeFn:    client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
}

// Close releases the underlying connection pool or client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}
