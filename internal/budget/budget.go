// Package budget tracks resource consumption against a configured limit and
// gates new task admission. The meter is consulted before each dispatch and
// is never mutated by the scheduler itself; executors report usage into it.
package budget

import (
	"sync"

	"github.com/trellison/waggle/pkg/models"
)

// Status represents the current state of budget consumption.
type Status int

const (
	// StatusOK indicates usage is below the warning threshold.
	StatusOK Status = iota
	// StatusWarning indicates usage is between the warning threshold and
	// exhaustion.
	StatusWarning
	// StatusExhausted indicates the budget is fully consumed.
	StatusExhausted
)

// String returns a human-readable representation of the budget status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "Warning"
	case StatusExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the usage fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// Gate is the admission check consulted before each task dispatch. It is
// independent of dependency and concurrency constraints: a refused task
// yields an immediate failure without ever starting.
type Gate interface {
	// CanProceed reports whether a new task may start.
	CanProceed() bool
	// CumulativeCost returns the total monetary cost recorded so far.
	CumulativeCost() float64
}

// Meter tracks token and cost consumption against a token budget.
// A zero or negative budget means no limit.
type Meter struct {
	mu               sync.RWMutex
	budget           int64
	usage            models.Usage
	warningThreshold float64
}

// NewMeter creates a Meter with the given token budget.
func NewMeter(tokenBudget int64) *Meter {
	return &Meter{
		budget:           tokenBudget,
		warningThreshold: DefaultWarningThreshold,
	}
}

// Record accumulates usage reported by a completed task attempt.
func (m *Meter) Record(u models.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(u)
}

// Check returns the current budget status based on token usage.
func (m *Meter) Check() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.budget <= 0 {
		return StatusOK
	}

	fraction := float64(m.usage.TotalTokens()) / float64(m.budget)
	if fraction >= 1.0 {
		return StatusExhausted
	}
	if fraction >= m.warningThreshold {
		return StatusWarning
	}
	return StatusOK
}

// CanProceed reports whether a new task may start. Returns false once the
// token budget is exhausted; in-flight tasks are unaffected.
func (m *Meter) CanProceed() bool {
	return m.Check() != StatusExhausted
}

// CumulativeCost returns the total dollar cost recorded so far.
func (m *Meter) CumulativeCost() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage.Cost
}

// Usage returns a copy of the accumulated usage counters.
func (m *Meter) Usage() models.Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage
}

// SetWarningThreshold sets the warning fraction (0.0-1.0). Out-of-range
// values are clamped.
func (m *Meter) SetWarningThreshold(threshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	m.warningThreshold = threshold
}

// Reset clears the accumulated usage.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = models.Usage{}
}

var _ Gate = (*Meter)(nil)
