package warmstart

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Result counts what reconciliation did to one table.
type Result struct {
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
}

// Helper runs the restart cycle for a single table.
type Helper struct {
	table string
	store sonic.Store

	mu       sync.Mutex
	state    State
	snapshot map[string]map[string]string
	buffer   map[string]sonic.TableChange
}

// NewHelper creates an idle helper for table.
func NewHelper(store sonic.Store, table string) *Helper {
	return &Helper{
		table:  table,
		store:  store,
		buffer: map[string]sonic.TableChange{},
	}
}

// Table returns the table the helper manages.
func (h *Helper) Table() string { return h.table }

// State returns the helper's phase.
func (h *Helper) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Begin snapshots the table's current keys. Only valid from Idle.
func (h *Helper) Begin(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Idle {
		return fmt.Errorf("%s: begin from %s: %w", h.table, h.state, util.ErrInvalidState)
	}
	h.state = Initialized

	entries, err := h.store.Entries(ctx, h.table)
	if err != nil {
		return fmt.Errorf("%s: snapshot: %w", h.table, err)
	}
	h.snapshot = entries
	h.state = Restored
	util.WithTable(h.table).Infof("warm restart: restored %d entries", len(entries))
	return nil
}

// Insert buffers a change. It reports false when the helper is not
// buffering and the caller should write through.
func (h *Helper) Insert(change sonic.TableChange) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.InProgress() {
		return false
	}
	h.buffer[change.Key] = change
	return true
}

// Pending returns the number of buffered keys.
func (h *Helper) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffer)
}

// Reconcile applies the buffered state against the snapshot in one write
// and moves to Reconciled. Only valid from Restored.
func (h *Helper) Reconcile(ctx context.Context) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Restored {
		return Result{}, fmt.Errorf("%s: reconcile from %s: %w", h.table, h.state, util.ErrInvalidState)
	}

	changes, res := h.diff()
	if err := h.store.Apply(ctx, changes...); err != nil {
		return Result{}, fmt.Errorf("%s: reconcile: %w", h.table, err)
	}

	h.state = Reconciled
	h.snapshot = nil
	h.buffer = map[string]sonic.TableChange{}
	util.WithTable(h.table).Infof("warm restart: reconciled (%d added, %d updated, %d deleted, %d unchanged)",
		res.Added, res.Updated, res.Deleted, res.Unchanged)
	return res, nil
}

// diff computes the reconciliation writes in key order.
func (h *Helper) diff() ([]sonic.TableChange, Result) {
	var res Result
	var changes []sonic.TableChange

	stale := make([]string, 0, len(h.snapshot))
	for key := range h.snapshot {
		if _, ok := h.buffer[key]; !ok {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, key := range stale {
		changes = append(changes, sonic.Del(h.table, key))
		res.Deleted++
	}

	keys := make([]string, 0, len(h.buffer))
	for key := range h.buffer {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		change := h.buffer[key]
		old, existed := h.snapshot[key]
		switch {
		case change.IsDelete() && existed:
			changes = append(changes, change)
			res.Deleted++
		case change.IsDelete():
			// Never published; nothing to remove.
		case existed && sonic.EqualFields(old, change.Fields):
			res.Unchanged++
		case existed:
			changes = append(changes, change)
			res.Updated++
		default:
			changes = append(changes, change)
			res.Added++
		}
	}
	return changes, res
}
