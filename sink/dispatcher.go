package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/cyclewatch/domain/cycle"
)

// ErrQueueFull is returned by Publish when the buffer is full.
var ErrQueueFull = errors.New("sink: queue full")

// DefaultBuffer is the queue length used when NewDispatcher gets size <= 0.
const DefaultBuffer = 64

// Dispatcher fans records out to sinks from a single goroutine so the
// detection loop never blocks on I/O. Records are delivered in publish
// order; a failing sink is logged and does not stop the others.
type Dispatcher struct {
	sessionID string
	sinks     []Sink
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan Record
	done   chan struct{}

	delivered int
	failed    int
	dropped   int
}

func NewDispatcher(sessionID string, size int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = DefaultBuffer
	}
	d := &Dispatcher{
		sessionID: sessionID,
		sinks:     sinks,
		logger:    logger,
		timeout:   5 * time.Second,
		queue:     make(chan Record, size),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// OnCycle is a cycle.CycleListener that enqueues c without blocking.
func (d *Dispatcher) OnCycle(c cycle.Cycle) {
	if err := d.Publish(NewRecord(d.sessionID, c, time.Now())); err != nil && d.logger != nil {
		d.logger.Warn("cycle not published", "cycle_id", c.ID, "error", err)
	}
}

// Publish queues rec, dropping it when the buffer is full.
func (d *Dispatcher) Publish(rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("sink: dispatcher closed")
	}
	select {
	case d.queue <- rec:
		return nil
	default:
		d.dropped++
		return ErrQueueFull
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for rec := range d.queue {
		for _, s := range d.sinks {
			err := d.deliver(s, rec)
			d.mu.Lock()
			if err != nil {
				d.failed++
			} else {
				d.delivered++
			}
			d.mu.Unlock()
			if err != nil && d.logger != nil {
				d.logger.Error("sink failed", "sink", fmt.Sprintf("%T", s), "cycle_id", rec.CycleID, "error", err)
			}
		}
	}
}

func (d *Dispatcher) deliver(s Sink, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return s.Consume(ctx, rec)
}

// Stats returns delivery counters: successful sink writes, failed sink
// writes, and records dropped on a full queue.
func (d *Dispatcher) Stats() (delivered, failed, dropped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered, d.failed, d.dropped
}

// Close drains the queue, then closes every sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done

	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
