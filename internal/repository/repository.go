package repository

import (
	"context"
	"fmt"
	"time"

	"geolink/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Migrate создаёт таблицы links и visits, если их ещё нет.
// visits.link_id ссылается на links.id с каскадным удалением.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id         BIGSERIAL PRIMARY KEY,
			slug       TEXT NOT NULL UNIQUE,
			target_url TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id             UUID PRIMARY KEY,
			link_id        BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
			ip_address     TEXT NOT NULL DEFAULT '',
			user_agent     TEXT NOT NULL DEFAULT '',
			referer        TEXT NOT NULL DEFAULT '',
			consented      BOOLEAN NOT NULL DEFAULT FALSE,
			decline_reason TEXT,
			latitude       DOUBLE PRECISION,
			longitude      DOUBLE PRECISION,
			accuracy       DOUBLE PRECISION,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at    TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_link_id ON visits(link_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_pending ON visits(created_at) WHERE resolved_at IS NULL`,
	}

	for _, stmt := range ddl {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}
