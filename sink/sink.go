// Package sink delivers completed cycles to downstream consumers: the
// cycle store, a Kafka topic, or the log.
package sink

import (
	"context"
	"time"

	"github.com/soocke/cyclewatch/domain/cycle"
)

// Record is the published form of a cycle. Times are media seconds.
type Record struct {
	SessionID string    `json:"session_id"`
	CycleID   string    `json:"cycle_id"`
	Start     float64   `json:"start_s"`
	End       float64   `json:"end_s"`
	Duration  float64   `json:"duration_s"`
	Status    string    `json:"status"`
	Label     string    `json:"label,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`

	cycle cycle.Cycle
}

// NewRecord wraps c for publishing.
func NewRecord(sessionID string, c cycle.Cycle, now time.Time) Record {
	return Record{
		SessionID: sessionID,
		CycleID:   c.ID,
		Start:     c.StartTime.Seconds(),
		End:       c.EndTime.Seconds(),
		Duration:  c.Duration.Seconds(),
		Status:    string(c.Status),
		Label:     c.Label,
		EmittedAt: now.UTC(),
		cycle:     c,
	}
}

// Cycle returns the cycle the record was built from.
func (r Record) Cycle() cycle.Cycle { return r.cycle }

// Sink consumes cycle records.
type Sink interface {
	Consume(ctx context.Context, rec Record) error
	Close() error
}
