package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"homepage-aggregator/internal/config"
)

type Store struct {
	pool    *pgxpool.Pool
	channel string
}

// SectionRow is the last published payload of one homepage section.
type SectionRow struct {
	Name      string
	Payload   []byte // JSON array of field mappings
	UpdatedAt time.Time
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, channel: cfg.Listener.Channel}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the sections table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS homepage_sections (
			name       TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create homepage_sections: %w", err)
	}
	return nil
}

// LoadSections returns every stored section.
func (s *Store) LoadSections(ctx context.Context) ([]SectionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT name, payload::text, updated_at FROM homepage_sections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []SectionRow
	for rows.Next() {
		var (
			r       SectionRow
			payload string
		)
		if err := rows.Scan(&r.Name, &payload, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// SaveSection upserts a section and notifies listeners when the payload changed.
func (s *Store) SaveSection(ctx context.Context, name string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO homepage_sections (name, payload, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = now()
		WHERE homepage_sections.payload IS DISTINCT FROM EXCLUDED.payload
	`, name, string(payload))
	if err != nil {
		return fmt.Errorf("upsert section %s: %w", name, err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, name); err != nil {
			return fmt.Errorf("notify %s: %w", s.channel, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListenChannel() string {
	return s.channel
}

func (s *Store) PgxPool() *pgxpool.Pool {
	return s.pool
}
