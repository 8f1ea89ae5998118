package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vidstash/vidstash/internal/store"
	memorystore "github.com/vidstash/vidstash/internal/store/memory"
	postgresstore "github.com/vidstash/vidstash/internal/store/postgres"
)

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"VIDSTASH_POSTGRES_AUTO_MIGRATE"`
}

// stores bundles the four store interfaces behind a single close handle so
// the commands don't care which backend they got.
type stores struct {
	anonSessions store.AnonymousSessionStore
	userSessions store.UserSessionStore
	users        store.UserStore
	videos       store.VideoStore

	close func()
}

func buildStores(ctx context.Context, storeType string, flags PostgresStoreFlags, log zerolog.Logger) (*stores, error) {
	switch storeType {
	case "postgres":
		if flags.ConnString == "" {
			return nil, errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		// Shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      flags.ConnString,
			MaxConns:        flags.MaxConns,
			MinConns:        flags.MinConns,
			MaxConnLifetime: flags.MaxConnLifetime,
			MaxConnIdleTime: flags.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if flags.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

		return &stores{
			anonSessions: postgresstore.NewAnonymousSessionStore(pool),
			userSessions: postgresstore.NewUserSessionStore(pool),
			users:        postgresstore.NewUserStore(pool),
			videos:       postgresstore.NewVideoStore(pool),
			close:        pool.Close,
		}, nil

	default:
		log.Info().Msg("Using in-memory stores")
		return &stores{
			anonSessions: memorystore.NewAnonymousSessionStore(),
			userSessions: memorystore.NewUserSessionStore(),
			users:        memorystore.NewUserStore(),
			videos:       memorystore.NewVideoStore(),
			close:        func() {},
		}, nil
	}
}
