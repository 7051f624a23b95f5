package warmstart

import (
	"context"
	"fmt"
	"sync"

	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// StateRecorder persists the restart phase, e.g. to STATE_DB.
type StateRecorder interface {
	SetWarmRestartState(ctx context.Context, app, state string) error
}

// Coordinator interposes on the record writer for every table it manages.
// Outside a restart cycle it writes through; during one it buffers. It
// implements sonic.Store.
type Coordinator struct {
	app     string
	store   sonic.Store
	helpers map[string]*Helper
	order   []string

	mu       sync.Mutex
	state    State
	recorder StateRecorder
	onState  func(State)
}

// NewCoordinator creates an idle coordinator for app over tables.
func NewCoordinator(store sonic.Store, app string, tables ...string) *Coordinator {
	c := &Coordinator{
		app:     app,
		store:   store,
		helpers: make(map[string]*Helper, len(tables)),
	}
	for _, t := range tables {
		if _, dup := c.helpers[t]; dup {
			continue
		}
		c.helpers[t] = NewHelper(store, t)
		c.order = append(c.order, t)
	}
	return c
}

// SetRecorder sets where phase changes are persisted.
func (c *Coordinator) SetRecorder(r StateRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// OnStateChange registers a callback invoked on every phase change.
func (c *Coordinator) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the coordinator's phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InProgress reports whether writes are being buffered.
func (c *Coordinator) InProgress() bool {
	return c.State().InProgress()
}

// Helper returns the helper for table, or nil.
func (c *Coordinator) Helper(table string) *Helper {
	return c.helpers[table]
}

// setState moves to s and records it. Recording failures are logged; the
// in-memory phase is authoritative.
func (c *Coordinator) setState(ctx context.Context, s State) {
	c.state = s
	if c.recorder != nil {
		if err := c.recorder.SetWarmRestartState(ctx, c.app, s.String()); err != nil {
			util.WithField("app", c.app).Errorf("recording warm restart state %s: %v", s, err)
		}
	}
	if c.onState != nil {
		c.onState(s)
	}
}

// Begin starts a restart cycle: every table is snapshotted and subsequent
// writes are buffered until Reconcile. Only valid from Idle.
func (c *Coordinator) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("warm restart begin from %s: %w", c.state, util.ErrInvalidState)
	}
	c.setState(ctx, Initialized)
	for _, t := range c.order {
		if err := c.helpers[t].Begin(ctx); err != nil {
			return err
		}
	}
	c.setState(ctx, Restored)
	return nil
}

// Reconcile ends the restart cycle. Only valid from Restored.
func (c *Coordinator) Reconcile(ctx context.Context) (map[string]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Restored {
		return nil, fmt.Errorf("warm restart reconcile from %s: %w", c.state, util.ErrInvalidState)
	}
	results := make(map[string]Result, len(c.order))
	for _, t := range c.order {
		h := c.helpers[t]
		if h.State() == Reconciled {
			// Done by an earlier attempt that failed on a later table.
			continue
		}
		res, err := h.Reconcile(ctx)
		if err != nil {
			return results, err
		}
		results[t] = res
	}
	c.setState(ctx, Reconciled)
	return results, nil
}

// Apply implements sonic.Store. Changes for managed tables are buffered
// while a cycle is in progress; the rest are written through together.
func (c *Coordinator) Apply(ctx context.Context, changes ...sonic.TableChange) error {
	var through []sonic.TableChange
	for _, change := range changes {
		if h, ok := c.helpers[change.Table]; ok && h.Insert(change) {
			continue
		}
		through = append(through, change)
	}
	if len(through) == 0 {
		return nil
	}
	return c.store.Apply(ctx, through...)
}

// Entries implements sonic.Store by reading the live table.
func (c *Coordinator) Entries(ctx context.Context, table string) (map[string]map[string]string, error) {
	return c.store.Entries(ctx, table)
}
