package pubmap

import (
	"sync"
)

// Hook function types for run events
type (
	// RunCompletedHook is called after every successful run, including runs
	// that found nothing new
	RunCompletedHook func(result *Result)

	// RunFailedHook is called when a run returns an error
	RunFailedHook func(err error)
)

// Hooks registers run event callbacks.
type Hooks interface {
	// OnRunCompleted registers a callback for successful runs
	OnRunCompleted(RunCompletedHook)

	// OnRunFailed registers a callback for failed runs
	OnRunFailed(RunFailedHook)
}

// hooks manages event callbacks for runs
type hooks struct {
	mu          sync.RWMutex
	onCompleted []RunCompletedHook
	onFailed    []RunFailedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnRunCompleted implements Hooks.
func (c *client) OnRunCompleted(fn RunCompletedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onCompleted = append(c.hooks.onCompleted, fn)
}

// OnRunFailed implements Hooks.
func (c *client) OnRunFailed(fn RunFailedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onFailed = append(c.hooks.onFailed, fn)
}

func (h *hooks) triggerCompleted(result *Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onCompleted {
		hook(result)
	}
}

func (h *hooks) triggerFailed(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onFailed {
		hook(err)
	}
}
