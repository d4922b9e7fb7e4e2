package server

import (
	"sync"
	"time"

	"github.com/agentstation/pubmap"
	"github.com/agentstation/pubmap/internal/server/response"
	"github.com/agentstation/pubmap/pkg/schedule"
)

// Scheduler is the part of schedule.Scheduler the status page reports.
type Scheduler interface {
	State() schedule.State
	Next() time.Time
}

// Tracker records run outcomes delivered through client hooks.
type Tracker struct {
	client pubmap.Client
	sched  Scheduler

	mu        sync.RWMutex
	runs      int
	failures  int
	lastRun   *pubmap.Result
	lastErr   error
	lastErrAt time.Time
}

// NewTracker registers hooks on client. sched may be nil when nothing is
// scheduled.
func NewTracker(client pubmap.Client, sched Scheduler) *Tracker {
	t := &Tracker{client: client, sched: sched}
	client.OnRunCompleted(t.completed)
	client.OnRunFailed(t.failed)
	return t
}

func (t *Tracker) completed(result *pubmap.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.lastRun = result
}

func (t *Tracker) failed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.failures++
	t.lastErr = err
	t.lastErrAt = time.Now()
}

// Status is the body of GET /status.
type Status struct {
	State         string         `json:"state,omitempty"`
	NextRun       *time.Time     `json:"next_run,omitempty"`
	Runs          int            `json:"runs"`
	Failures      int            `json:"failures"`
	LastProcessed string         `json:"last_processed,omitempty"`
	LastRun       *RunStatus     `json:"last_run,omitempty"`
	LastError     *FailureStatus `json:"last_error,omitempty"`
}

// RunStatus summarizes the last successful run.
type RunStatus struct {
	*pubmap.Result
	Summary string `json:"summary,omitempty"`
}

// FailureStatus describes the last failed run.
type FailureStatus struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Status returns a snapshot of the pipeline state.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Status{
		Runs:          t.runs,
		Failures:      t.failures,
		LastProcessed: t.client.LastProcessed(),
	}
	if t.sched != nil {
		s.State = t.sched.State().String()
		if next := t.sched.Next(); !next.IsZero() {
			s.NextRun = &next
		}
	}
	if t.lastRun != nil {
		rs := &RunStatus{Result: t.lastRun}
		if t.lastRun.Reconciliation != nil {
			rs.Summary = t.lastRun.Reconciliation.Summary()
		}
		s.LastRun = rs
	}
	if t.lastErr != nil {
		s.LastError = &FailureStatus{
			Code:    response.Code(t.lastErr),
			Message: t.lastErr.Error(),
			At:      t.lastErrAt,
		}
	}
	return s
}
