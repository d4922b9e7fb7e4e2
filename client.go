// Package pubmap keeps a publication to bundle/domain mapping sheet current.
//
// A run fetches the newest report from a source, reconciles it against the
// reference ("no-domain") tab of a spreadsheet and appends the result to the
// mapping tab. The reference tab is rewritten with ambiguous rows removed on
// every run that processes a report, whether or not anything is appended.
//
// Example usage:
//
//	client, err := pubmap.New(
//	    pubmap.WithSource(src),
//	    pubmap.WithDocument(doc),
//	    pubmap.WithReferenceSheet("no-domain"),
//	    pubmap.WithTargetSheet("app-mapping"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// One run
//	result, err := client.Run(ctx)
//
//	// Or daily at 22:00, polling every two hours afterwards
//	err = client.Schedule(schedule.DefaultConfig()).Run(ctx)
package pubmap

import (
	"context"
	"sync"

	"github.com/agentstation/pubmap/pkg/reconciler"
	"github.com/agentstation/pubmap/pkg/schedule"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client runs the pipeline.
type Client interface {
	// Run performs one pipeline run
	Run(ctx context.Context) (*Result, error)

	// Hooks provides access to event callback registration
	Hooks

	// LastProcessed returns the identifier of the last dataset published,
	// or "" if none was since the client was created.
	LastProcessed() string

	// Schedule returns a scheduler that drives Run.
	Schedule(cfg schedule.Config, opts ...schedule.Option) *schedule.Scheduler

	// Close releases the source's resources.
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	rec     reconciler.Reconciler

	// last is the idempotence guard. It lives in memory only.
	mu   sync.RWMutex
	last string

	hooks *hooks
}

// New creates a new Client with the given options. A source, a document and
// both sheet names are required.
func New(opts ...Option) (Client, error) {
	o := defaults().apply(opts...)
	if err := o.validate(); err != nil {
		return nil, err
	}

	rec := o.reconciler
	if rec == nil {
		var err error
		if rec, err = reconciler.New(); err != nil {
			return nil, err
		}
	}

	return &client{
		options: o,
		rec:     rec,
		hooks:   newHooks(),
	}, nil
}

// LastProcessed implements Client.
func (c *client) LastProcessed() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *client) markProcessed(id string) {
	c.mu.Lock()
	c.last = id
	c.mu.Unlock()
}

// Schedule implements Client.
func (c *client) Schedule(cfg schedule.Config, opts ...schedule.Option) *schedule.Scheduler {
	return schedule.New(schedule.RunnerFunc(func(ctx context.Context) error {
		_, err := c.Run(ctx)
		return err
	}), cfg, opts...)
}

// Close implements Client.
func (c *client) Close() error {
	return c.options.source.Cleanup()
}
