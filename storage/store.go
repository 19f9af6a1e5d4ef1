// Package storage persists completed cycles so runs can be compared across
// sessions and videos.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/soocke/cyclewatch/config"
	"github.com/soocke/cyclewatch/domain/cycle"
)

var ErrUnsupportedDriver = errors.New("storage: unsupported driver")

// Store is a cycle repository.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveCycle(ctx context.Context, sessionID string, c cycle.Cycle) error
	ListCycles(ctx context.Context, sessionID string) ([]cycle.Cycle, error)
}

// NewStore opens the configured backend. A disabled configuration yields a
// nil Store and no error.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, ErrUnsupportedDriver
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// scanCycles reads rows of (cycle_id, start_ms, end_ms, duration_ms, status, label).
func scanCycles(rows *sql.Rows) ([]cycle.Cycle, error) {
	defer rows.Close()
	var out []cycle.Cycle
	for rows.Next() {
		var (
			c                        cycle.Cycle
			startMs, endMs, duration int64
			status                   string
			label                    sql.NullString
		)
		if err := rows.Scan(&c.ID, &startMs, &endMs, &duration, &status, &label); err != nil {
			return nil, err
		}
		c.StartTime = millis(startMs)
		c.EndTime = millis(endMs)
		c.Duration = millis(duration)
		c.Status = cycle.Status(status)
		c.Label = label.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func millis(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
