package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-map/internal/config"
	"github.com/sells-group/property-map/internal/db"
	"github.com/sells-group/property-map/internal/listing"
)

// storeEnv is an open listing store for the configured driver.
type storeEnv struct {
	Repo   listing.Repository
	pool   *pgxpool.Pool
	sqlite *listing.SQLiteRepository
}

func openStore(ctx context.Context, sc config.StoreConfig) (*storeEnv, error) {
	switch sc.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, sc.DatabaseURL, db.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return &storeEnv{Repo: listing.NewPostgresRepository(pool), pool: pool}, nil
	case "sqlite":
		repo, err := listing.NewSQLiteRepository(sc.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return &storeEnv{Repo: repo, sqlite: repo}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// Migrate applies pending schema migrations.
func (e *storeEnv) Migrate(ctx context.Context) error {
	if e.pool != nil {
		return listing.Migrate(ctx, e.pool)
	}
	return e.sqlite.Migrate(ctx)
}

// Close releases the store's connections.
func (e *storeEnv) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.sqlite != nil {
		_ = e.sqlite.Close()
	}
}
