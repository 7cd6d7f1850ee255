package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs Session Context with a shared Postgres table instead
// of per-process session directories, for deployments that want a single
// durable store across multiple bridge/CLI processes. Selected via
// config alongside FileStore; same Store interface either way.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the sessions table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: connecting to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id           TEXT PRIMARY KEY,
			history              JSONB NOT NULL DEFAULT '[]',
			summary              JSONB NOT NULL DEFAULT '{}',
			latest_artifact_path TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: creating sessions table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Load fetches a session's row. An unknown session id yields a fresh,
// empty Context rather than an error.
func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*Context, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT history, summary, latest_artifact_path FROM sessions WHERE session_id = $1
	`, sessionID)

	var historyJSON, summaryJSON []byte
	var latestArtifactPath string
	err := row.Scan(&historyJSON, &summaryJSON, &latestArtifactPath)
	switch {
	case err == nil:
		sc := newEmpty(sessionID)
		if err := json.Unmarshal(historyJSON, &sc.History); err != nil {
			return nil, fmt.Errorf("session: parsing history for %s: %w", sessionID, err)
		}
		if err := json.Unmarshal(summaryJSON, &sc.Summary); err != nil {
			return nil, fmt.Errorf("session: parsing summary for %s: %w", sessionID, err)
		}
		sc.LatestArtifactPath = latestArtifactPath
		return sc, nil
	case errors.Is(err, pgx.ErrNoRows):
		return newEmpty(sessionID), nil
	default:
		return nil, fmt.Errorf("session: loading session %s: %w", sessionID, err)
	}
}

// Save upserts sc's full state in one statement.
func (p *PostgresStore) Save(ctx context.Context, sessionID string, sc *Context) error {
	historyJSON, err := json.Marshal(sc.History)
	if err != nil {
		return fmt.Errorf("session: marshaling history for %s: %w", sessionID, err)
	}
	summaryJSON, err := json.Marshal(sc.Summary)
	if err != nil {
		return fmt.Errorf("session: marshaling summary for %s: %w", sessionID, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, history, summary, latest_artifact_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET history = EXCLUDED.history,
		    summary = EXCLUDED.summary,
		    latest_artifact_path = EXCLUDED.latest_artifact_path
	`, sessionID, historyJSON, summaryJSON, sc.LatestArtifactPath)
	if err != nil {
		return fmt.Errorf("session: saving session %s: %w", sessionID, err)
	}
	return nil
}
