package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/soocke/cyclewatch/domain/cycle"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:cyclewatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			session_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL UNIQUE,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
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

func (s *sqliteStore) SaveCycle(ctx context.Context, sessionID string, c cycle.Cycle) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (created_at, session_id, cycle_id, start_ms, end_ms, duration_ms, status, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) ListCycles(ctx context.Context, sessionID string) ([]cycle.Cycle, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, start_ms, end_ms, duration_ms, status, label
		FROM cycles WHERE session_id = ? ORDER BY start_ms, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanCycles(rows)
}
