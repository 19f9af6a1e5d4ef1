package cycle

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Controller drives Advance over a stream of scores and hands completed
// cycles to listeners. It is not safe for concurrent use; callers feed it
// from a single processing loop.
type Controller struct {
	state          State
	params         Params
	logger         *slog.Logger
	newID          func() string
	listeners      []Listener
	cycleListeners []CycleListener
	lastStart      time.Duration
	emitted        int
}

// NewController returns a controller in the idle state.
func NewController(p Params, logger *slog.Logger) *Controller {
	return &Controller{params: p, logger: logger, newID: uuid.NewString, lastStart: -1}
}

// AddListener registers a state transition listener.
func (c *Controller) AddListener(l Listener) { c.listeners = append(c.listeners, l) }

// AddCycleListener registers a completed cycle listener.
func (c *Controller) AddCycleListener(l CycleListener) {
	c.cycleListeners = append(c.cycleListeners, l)
}

// Current returns the current logic state.
func (c *Controller) Current() LogicState { return c.state.Logic }

// State returns the full machine state.
func (c *Controller) State() State { return c.state }

// Params returns the active tuning constants.
func (c *Controller) Params() Params { return c.params }

// Emitted returns the number of cycles completed since the last reset.
func (c *Controller) Emitted() int { return c.emitted }

// Reset returns the machine to idle without notifying listeners.
func (c *Controller) Reset() {
	c.state = State{}
	c.lastStart = -1
	c.emitted = 0
}

// Feed advances the machine with score s at media time t. label is the
// motion classification current at t and is attached to a cycle that
// completes on this call.
func (c *Controller) Feed(s float64, t time.Duration, label string) (*Cycle, Outcome) {
	before := c.state
	prev := before.Logic
	next, out := Advance(before, s, t, c.params)
	c.state = next
	var done *Cycle
	switch out {
	case OutcomeCompleted:
		cy := Emit(next, c.params, c.newID(), label)
		if cy.StartTime <= c.lastStart && c.logger != nil {
			c.logger.Warn("cycle start not after previous", "start", cy.StartTime, "previous", c.lastStart)
		}
		c.lastStart = cy.StartTime
		c.emitted++
		done = &cy
		if c.logger != nil {
			c.logger.Info("cycle completed", "id", cy.ID, "duration", cy.Duration, "status", string(cy.Status), "label", cy.Label)
		}
	case OutcomeDiscarded:
		if c.logger != nil {
			c.logger.Debug("false trigger discarded", "start", before.Start, "at", t)
		}
	}
	if prev != next.Logic {
		if c.logger != nil {
			c.logger.Debug("cycle state transition", "from", prev.String(), "to", next.Logic.String())
		}
		for _, l := range c.listeners {
			l(prev, next.Logic)
		}
	}
	if done != nil {
		for _, l := range c.cycleListeners {
			l(*done)
		}
	}
	return done, out
}
