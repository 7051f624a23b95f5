// Package warmstart holds route writes while the routing stack restarts and
// reconciles them against the records published before the restart.
//
// A restart cycle moves each table through Initialized (restart begun),
// Restored (pre-restart keys snapshotted) and Reconciled (diff applied).
// Writes arriving in between are buffered per key; the last write for a key
// wins. Reconciliation deletes snapshot keys that were never refreshed,
// writes new or changed entries, and leaves identical entries untouched.
package warmstart

// State is a warm-restart phase.
type State int

const (
	// Idle means no restart cycle has started; writes pass through.
	Idle State = iota
	Initialized
	Restored
	Reconciled
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Restored:
		return "restored"
	case Reconciled:
		return "reconciled"
	}
	return "idle"
}

// InProgress reports whether writes are being buffered.
func (s State) InProgress() bool {
	return s == Initialized || s == Restored
}
