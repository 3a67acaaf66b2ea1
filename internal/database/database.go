// internal/database/database.go

// Package database persists completed match results to Postgres. The server
// runs fine without it; an empty DSN disables recording entirely.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const matchResultsSchema = `
CREATE TABLE IF NOT EXISTS match_results (
	id           BIGSERIAL PRIMARY KEY,
	lobby_id     TEXT NOT NULL,
	game_id      TEXT NOT NULL,
	grid_size    INT NOT NULL,
	player_count INT NOT NULL,
	winner_id    TEXT,
	winner_name  TEXT,
	draw         BOOLEAN NOT NULL,
	total_ticks  INT NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// MatchResult is one completed round's outcome.
type MatchResult struct {
	LobbyID     string
	GameID      string
	GridSize    int
	PlayerCount int
	WinnerID    string
	WinnerName  string
	Draw        bool
	TotalTicks  int
}

// MatchRecorder writes match results through a pgx pool.
type MatchRecorder struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// Connect opens the pool, verifies it with a ping, and ensures the schema.
func Connect(ctx context.Context, dsn string, logger *logrus.Logger) (*MatchRecorder, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := pool.Exec(ctx, matchResultsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure match_results schema: %w", err)
	}

	logger.Info("connected to postgres, match recording enabled")
	return &MatchRecorder{pool: pool, logger: logger}, nil
}

// RecordMatch inserts one result row. Failures are logged, not surfaced; a
// lost history row must never affect the game flow.
func (m *MatchRecorder) RecordMatch(ctx context.Context, res MatchResult) {
	if m == nil {
		return
	}
	const q = `
		INSERT INTO match_results
			(lobby_id, game_id, grid_size, player_count, winner_id, winner_name, draw, total_ticks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := m.pool.Exec(ctx, q,
		res.LobbyID, res.GameID, res.GridSize, res.PlayerCount,
		res.WinnerID, res.WinnerName, res.Draw, res.TotalTicks,
	); err != nil {
		m.logger.Warnf("failed to record match result for lobby %s: %v", res.LobbyID, err)
	}
}

// Close releases the pool.
func (m *MatchRecorder) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}
