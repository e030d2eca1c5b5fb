package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
)

// Repository provides PostgreSQL-based durable match storage: one row per
// match, player seats serialized as JSONB. It implements engine.MatchStore.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations. The expires_at and status
// indexes back the sweep query.
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id VARCHAR(64) PRIMARY KEY,
			rows INT NOT NULL,
			cols INT NOT NULL,
			k INT NOT NULL,
			seed VARCHAR(64) NOT NULL,
			image_url TEXT NOT NULL,
			status VARCHAR(10) NOT NULL,
			started_at BIGINT NOT NULL DEFAULT 0,
			ended_at BIGINT NOT NULL DEFAULT 0,
			winner_id VARCHAR(64) NOT NULL DEFAULT '',
			expires_at BIGINT NOT NULL,
			p1 JSONB,
			p2 JSONB,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_expires_at ON matches(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// Get retrieves a match by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Match, error) {
	query := `
		SELECT id, rows, cols, k, seed, image_url, status,
		       started_at, ended_at, winner_id, expires_at, p1, p2, created_at
		FROM matches
		WHERE id = $1
	`
	var (
		m      domain.Match
		status string
		p1, p2 []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Rows,
		&m.Cols,
		&m.K,
		&m.Seed,
		&m.ImageURL,
		&status,
		&m.StartedAt,
		&m.EndedAt,
		&m.WinnerID,
		&m.ExpiresAt,
		&p1,
		&p2,
		&m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMatchNotFound
		}
		return nil, fmt.Errorf("getting match: %w", err)
	}

	m.Status = domain.Status(status)
	if m.P1, err = unmarshalPlayer(p1); err != nil {
		return nil, fmt.Errorf("decoding p1: %w", err)
	}
	if m.P2, err = unmarshalPlayer(p2); err != nil {
		return nil, fmt.Errorf("decoding p2: %w", err)
	}
	return &m, nil
}

// Create inserts a new match row.
func (r *Repository) Create(ctx context.Context, m *domain.Match) error {
	p1, err := marshalPlayer(m.P1)
	if err != nil {
		return fmt.Errorf("encoding p1: %w", err)
	}
	p2, err := marshalPlayer(m.P2)
	if err != nil {
		return fmt.Errorf("encoding p2: %w", err)
	}

	query := `
		INSERT INTO matches (
			id, rows, cols, k, seed, image_url, status,
			started_at, ended_at, winner_id, expires_at, p1, p2, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		m.ID,
		m.Rows,
		m.Cols,
		m.K,
		m.Seed,
		m.ImageURL,
		string(m.Status),
		m.StartedAt,
		m.EndedAt,
		m.WinnerID,
		m.ExpiresAt,
		p1,
		p2,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating match: %w", err)
	}
	return nil
}

// Update replaces the stored record. Grid parameters and the seed are
// immutable once created and are not part of the update.
func (r *Repository) Update(ctx context.Context, m *domain.Match) error {
	p1, err := marshalPlayer(m.P1)
	if err != nil {
		return fmt.Errorf("encoding p1: %w", err)
	}
	p2, err := marshalPlayer(m.P2)
	if err != nil {
		return fmt.Errorf("encoding p2: %w", err)
	}

	query := `
		UPDATE matches SET
			status = $2,
			started_at = $3,
			ended_at = $4,
			winner_id = $5,
			expires_at = $6,
			p1 = $7,
			p2 = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		m.ID,
		string(m.Status),
		m.StartedAt,
		m.EndedAt,
		m.WinnerID,
		m.ExpiresAt,
		p1,
		p2,
	)
	if err != nil {
		return fmt.Errorf("updating match: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

// Delete removes a match row. Deleting an absent match is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM matches WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	return nil
}

// ListExpirable returns ids of matches past their expiry, or done for
// longer than doneRetentionMs.
func (r *Repository) ListExpirable(ctx context.Context, nowMs, doneRetentionMs int64) ([]string, error) {
	query := `
		SELECT id FROM matches
		WHERE $1 > expires_at
		   OR (status = 'done' AND ended_at > 0 AND $1 - ended_at >= $2)
	`
	rows, err := r.pool.Query(ctx, query, nowMs, doneRetentionMs)
	if err != nil {
		return nil, fmt.Errorf("listing expirable matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func marshalPlayer(p *domain.Player) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func unmarshalPlayer(data []byte) (*domain.Player, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p domain.Player
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
