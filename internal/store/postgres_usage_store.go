package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/avatarframe/internal/domain"
	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS compositions (
	run_id TEXT PRIMARY KEY,
	avatar_path TEXT NOT NULL,
	frame_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	opacity DOUBLE PRECISION NOT NULL,
	avatar_bytes BIGINT NOT NULL,
	frame_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	square_size INTEGER NOT NULL,
	output_size INTEGER NOT NULL,
	pixels BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure compositions schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO compositions (
			run_id, avatar_path, frame_path, output_path, opacity,
			avatar_bytes, frame_bytes, output_bytes, square_size, output_size,
			pixels, compute_time_ms, cache_hit, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		usage.RunID,
		usage.AvatarPath,
		usage.FramePath,
		usage.OutputPath,
		float64(usage.Opacity),
		usage.AvatarBytes,
		usage.FrameBytes,
		usage.OutputBytes,
		usage.SquareSize,
		usage.OutputSize,
		usage.Pixels,
		usage.ComputeTimeMS,
		usage.CacheHit,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert composition: %w", err)
	}
	return nil
}
