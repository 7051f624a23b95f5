package warmstart

import (
	"context"
	"errors"
	"testing"

	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

type recorder struct {
	states []string
	err    error
}

func (r *recorder) SetWarmRestartState(_ context.Context, app, state string) error {
	r.states = append(r.states, app+"="+state)
	return r.err
}

func route(nh string) map[string]string {
	return map[string]string{"protocol": "bgp", "nexthop": nh, "ifname": "Ethernet0"}
}

func seed(t *testing.T, store *sonic.MemoryStore, table string, entries map[string]map[string]string) {
	t.Helper()
	for k, v := range entries {
		if err := store.Apply(context.Background(), sonic.Set(table, k, v)); err != nil {
			t.Fatalf("seeding %s: %v", k, err)
		}
	}
}

func TestCoordinator_Convergence(t *testing.T) {
	ctx := context.Background()
	store := sonic.NewMemoryStore()
	seed(t, store, sonic.RouteTable, map[string]map[string]string{
		"A": route("10.0.0.1"),
		"B": route("10.0.0.2"),
		"C": route("10.0.0.3"),
	})

	c := NewCoordinator(store, "bgp", sonic.RouteTable)
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if c.State() != Restored {
		t.Fatalf("State() = %s, want restored", c.State())
	}

	applied := store.Applies()
	err := c.Apply(ctx,
		sonic.Set(sonic.RouteTable, "A", route("10.0.0.9")),
		sonic.Set(sonic.RouteTable, "C", route("10.0.0.3")),
		sonic.Set(sonic.RouteTable, "D", route("10.0.0.4")),
	)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Applies() != applied {
		t.Fatal("writes reached the store during the restart window")
	}
	if got := store.Get(sonic.RouteTable, "A"); got["nexthop"] != "10.0.0.1" {
		t.Errorf("A changed before reconcile: %v", got)
	}

	results, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := Result{Added: 1, Updated: 1, Deleted: 1, Unchanged: 1}
	if results[sonic.RouteTable] != want {
		t.Errorf("Reconcile() = %+v, want %+v", results[sonic.RouteTable], want)
	}

	entries, _ := store.Entries(ctx, sonic.RouteTable)
	if len(entries) != 3 {
		t.Fatalf("table has %d entries, want 3: %v", len(entries), entries)
	}
	if entries["A"]["nexthop"] != "10.0.0.9" {
		t.Errorf("A = %v, want new attributes", entries["A"])
	}
	if _, ok := entries["B"]; ok {
		t.Error("B survived reconciliation")
	}
	if _, ok := entries["D"]; !ok {
		t.Error("D missing after reconciliation")
	}
	// Stale delete of B, set of A, set of D. C is untouched.
	if store.Applies()-applied != 3 {
		t.Errorf("reconcile wrote %d changes, want 3", store.Applies()-applied)
	}
	if c.State() != Reconciled {
		t.Errorf("State() = %s, want reconciled", c.State())
	}
}

func TestCoordinator_DeleteDuringRestart(t *testing.T) {
	ctx := context.Background()
	store := sonic.NewMemoryStore()
	seed(t, store, sonic.RouteTable, map[string]map[string]string{
		"Vrf10:10.0.0.0/24": route("10.1.1.1"),
	})

	c := NewCoordinator(store, "bgp", sonic.RouteTable)
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Apply(ctx, sonic.Del(sonic.RouteTable, "Vrf10:10.0.0.0/24")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Get(sonic.RouteTable, "Vrf10:10.0.0.0/24") == nil {
		t.Fatal("delete reached the store during the restart window")
	}
	if n := c.Helper(sonic.RouteTable).Pending(); n != 1 {
		t.Errorf("Pending() = %d, want 1", n)
	}

	if _, err := c.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if store.Get(sonic.RouteTable, "Vrf10:10.0.0.0/24") != nil {
		t.Error("deleted route present after reconciliation")
	}
}

func TestCoordinator_BufferLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := sonic.NewMemoryStore()
	c := NewCoordinator(store, "bgp", sonic.RouteTable)
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_ = c.Apply(ctx, sonic.Set(sonic.RouteTable, "X", route("10.0.0.1")))
	_ = c.Apply(ctx, sonic.Del(sonic.RouteTable, "X"))
	_ = c.Apply(ctx, sonic.Set(sonic.RouteTable, "Y", route("10.0.0.1")))
	_ = c.Apply(ctx, sonic.Set(sonic.RouteTable, "Y", route("10.0.0.2")))

	results, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := results[sonic.RouteTable]; got != (Result{Added: 1}) {
		t.Errorf("Reconcile() = %+v, want one add", got)
	}
	if store.Get(sonic.RouteTable, "X") != nil {
		t.Error("X written although its last buffered op was a delete")
	}
	if got := store.Get(sonic.RouteTable, "Y"); got["nexthop"] != "10.0.0.2" {
		t.Errorf("Y = %v, want last write", got)
	}
}

func TestCoordinator_PassThrough(t *testing.T) {
	ctx := context.Background()
	store := sonic.NewMemoryStore()
	c := NewCoordinator(store, "bgp", sonic.RouteTable)

	if err := c.Apply(ctx, sonic.Set(sonic.RouteTable, "A", route("10.0.0.1"))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Get(sonic.RouteTable, "A") == nil {
		t.Error("idle coordinator did not write through")
	}

	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Apply(ctx, sonic.Set(sonic.SRv6MySIDTable, "32:16:16:0:fc00::", map[string]string{"action": "end"})); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Get(sonic.SRv6MySIDTable, "32:16:16:0:fc00::") == nil {
		t.Error("unmanaged table was buffered")
	}

	if _, err := c.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := c.Apply(ctx, sonic.Set(sonic.RouteTable, "B", route("10.0.0.2"))); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if store.Get(sonic.RouteTable, "B") == nil {
		t.Error("reconciled coordinator did not write through")
	}
}

func TestCoordinator_Transitions(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	var hooked []State

	c := NewCoordinator(sonic.NewMemoryStore(), "bgp", sonic.RouteTable, sonic.RouteTable)
	c.SetRecorder(rec)
	c.OnStateChange(func(s State) { hooked = append(hooked, s) })

	if _, err := c.Reconcile(ctx); !errors.Is(err, util.ErrInvalidState) {
		t.Errorf("Reconcile from idle error = %v, want ErrInvalidState", err)
	}
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Begin(ctx); !errors.Is(err, util.ErrInvalidState) {
		t.Errorf("second Begin error = %v, want ErrInvalidState", err)
	}
	if _, err := c.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := c.Begin(ctx); !errors.Is(err, util.ErrInvalidState) {
		t.Errorf("Begin after reconcile error = %v, want ErrInvalidState", err)
	}

	wantRec := []string{"bgp=initialized", "bgp=restored", "bgp=reconciled"}
	if len(rec.states) != len(wantRec) {
		t.Fatalf("recorded %v, want %v", rec.states, wantRec)
	}
	for i := range wantRec {
		if rec.states[i] != wantRec[i] {
			t.Errorf("recorded[%d] = %q, want %q", i, rec.states[i], wantRec[i])
		}
	}
	if len(hooked) != 3 || hooked[2] != Reconciled {
		t.Errorf("state hook saw %v", hooked)
	}
}

func TestCoordinator_ReconcileWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := sonic.NewMemoryStore()
	c := NewCoordinator(store, "bgp", sonic.RouteTable)
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = c.Apply(ctx, sonic.Set(sonic.RouteTable, "A", route("10.0.0.1")))

	store.SetError(errors.New("redis down"))
	if _, err := c.Reconcile(ctx); err == nil {
		t.Fatal("Reconcile succeeded with a failing store")
	}
	if c.State() != Restored {
		t.Errorf("State() = %s after failed reconcile, want restored", c.State())
	}

	store.SetError(nil)
	if _, err := c.Reconcile(ctx); err != nil {
		t.Fatalf("retry Reconcile: %v", err)
	}
	if store.Get(sonic.RouteTable, "A") == nil {
		t.Error("buffered write lost across failed reconcile")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Initialized, "initialized"},
		{Restored, "restored"},
		{Reconciled, "reconciled"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
