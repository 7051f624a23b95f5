package testutil

import (
	"sync"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Names is a static interface/VRF index table.
type Names struct {
	byIndex map[int]string
}

// NewNames creates a resolver over the given index→name table.
func NewNames(m map[int]string) *Names {
	return &Names{byIndex: m}
}

// Name returns the name registered for index.
func (n *Names) Name(index int) (string, error) {
	if name, ok := n.byIndex[index]; ok {
		return name, nil
	}
	return "", util.ErrNotFound
}

// Index returns the index registered for name.
func (n *Names) Index(name string) (int, error) {
	for idx, nm := range n.byIndex {
		if nm == name {
			return idx, nil
		}
	}
	return 0, util.ErrNotFound
}

// Transport records messages sent back to the routing stack.
type Transport struct {
	mu   sync.Mutex
	Up   bool
	Sent [][]byte
}

// Send records msg, or fails when the transport is down.
func (t *Transport) Send(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Up {
		return util.ErrNotConnected
	}
	t.Sent = append(t.Sent, append([]byte(nil), msg...))
	return nil
}

// Connected reports whether the transport is up.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Up
}

// Messages returns a copy of the recorded messages.
func (t *Transport) Messages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.Sent...)
}
