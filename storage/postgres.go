package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/soocke/cyclewatch/domain/cycle"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/cyclewatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL UNIQUE,
			start_ms BIGINT NOT NULL,
			end_ms BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			status TEXT NOT NULL,
			label TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_session_start ON cycles(session_id, start_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveCycle(ctx context.Context, sessionID string, c cycle.Cycle) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (created_at, session_id, cycle_id, start_ms, end_ms, duration_ms, status, label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		nowUTC(),
		sessionID,
		c.ID,
		c.StartTime.Milliseconds(),
		c.EndTime.Milliseconds(),
		c.Duration.Milliseconds(),
		string(c.Status),
		nullable(c.Label),
	)
	return err
}

func (s *postgresStore) ListCycles(ctx context.Context, sessionID string) ([]cycle.Cycle, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, start_ms, end_ms, duration_ms, status, label
		FROM cycles WHERE session_id = $1 ORDER BY start_ms, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanCycles(rows)
}
