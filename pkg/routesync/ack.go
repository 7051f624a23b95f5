package routesync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Transport carries acknowledgments back to the routing stack.
type Transport interface {
	Send(msg []byte) error
	Connected() bool
}

// Acknowledger tells the routing stack a route is offloaded. In immediate
// mode it acknowledges right after the write; when suppression is on it
// waits for a successful programming response instead.
type Acknowledger struct {
	transport Transport
	names     NameResolver
	store     sonic.Store
	observer  Observer

	mu         sync.Mutex
	suppressed bool
}

// NewAcknowledger creates an acknowledger in immediate mode. store is read
// for bulk replays.
func NewAcknowledger(t Transport, names NameResolver, store sonic.Store) *Acknowledger {
	return &Acknowledger{transport: t, names: names, store: store, observer: nopObserver{}}
}

// SetObserver sets the outcome observer.
func (a *Acknowledger) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	a.observer = o
}

// Suppressed reports whether acknowledgments wait for responses.
func (a *Acknowledger) Suppressed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suppressed
}

// SetSuppressed switches modes. Leaving suppressed mode acknowledges every
// live route, since their responses will no longer be waited for.
func (a *Acknowledger) SetSuppressed(ctx context.Context, on bool) error {
	a.mu.Lock()
	was := a.suppressed
	a.suppressed = on
	a.mu.Unlock()

	if was == on {
		return nil
	}
	util.WithField("suppress_fib_pending", on).Info("offload acknowledgment mode changed")
	if was && !on {
		_, err := a.Replay(ctx)
		return err
	}
	return nil
}

// Written acknowledges a freshly written route unless suppressed.
func (a *Acknowledger) Written(d *rtnl.RouteDescriptor) error {
	if a.Suppressed() {
		return nil
	}
	return a.send(d)
}

// OnResponse acknowledges a route whose programming response arrived.
// Responses are ignored outside suppressed mode.
func (a *Acknowledger) OnResponse(r *sonic.Response) error {
	if !a.Suppressed() {
		return nil
	}
	_, err := a.respond(r.Key, r.Fields)
	return err
}

// Replay acknowledges every live ROUTE_TABLE entry as if a successful
// response had arrived for it. Per-route failures are logged and skipped.
func (a *Acknowledger) Replay(ctx context.Context) (int, error) {
	entries, err := a.store.Entries(ctx, sonic.RouteTable)
	if err != nil {
		return 0, fmt.Errorf("offload replay: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sent := 0
	for _, k := range keys {
		fields := entries[k]
		fields["err_str"] = sonic.StatusSuccess
		ok, err := a.respond(k, fields)
		if err != nil {
			util.WithRoute(k).Errorf("offload replay: %v", err)
			continue
		}
		if ok {
			sent++
		}
	}
	util.Logger.Infof("offload replay: acknowledged %d of %d routes", sent, len(keys))
	return sent, nil
}

// respond acknowledges key if fields report success and name a protocol.
// It reports whether an acknowledgment was sent.
func (a *Acknowledger) respond(key string, fields map[string]string) (bool, error) {
	if fields["err_str"] != sonic.StatusSuccess {
		util.WithRoute(key).Debugf("route not programmed: %s", fields["err_str"])
		return false, nil
	}
	proto, ok := fields["protocol"]
	if !ok {
		util.WithRoute(key).Debug("response without protocol, not acknowledged")
		return false, nil
	}
	d, err := a.descriptor(key, proto)
	if err != nil {
		return false, err
	}
	if err := a.send(d); err != nil {
		return false, err
	}
	return true, nil
}

// descriptor rebuilds an acknowledgment identity from a ROUTE_TABLE key.
// VRF routes are addressed by the VRF device index, the others by the main
// table.
func (a *Acknowledger) descriptor(key, proto string) (*rtnl.RouteDescriptor, error) {
	rk, err := ParseRouteKey(key)
	if err != nil {
		return nil, err
	}
	dst, err := rk.IPNet()
	if err != nil {
		return nil, err
	}
	protocol, err := ProtocolNumber(proto)
	if err != nil {
		return nil, fmt.Errorf("route %s: protocol: %w", key, err)
	}

	table := uint32(unix.RT_TABLE_MAIN)
	if rk.VRF != "" {
		if !strings.HasPrefix(rk.VRF, VRFPrefix) {
			return nil, util.NewRuleError(key, "not a VRF route")
		}
		idx, err := a.names.Index(rk.VRF)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", key, err)
		}
		table = uint32(idx)
	}
	return &rtnl.RouteDescriptor{Dst: dst, Protocol: protocol, Table: table}, nil
}

func (a *Acknowledger) send(d *rtnl.RouteDescriptor) error {
	if !a.transport.Connected() {
		a.observer.OffloadAck(false)
		return fmt.Errorf("offload ack %s: %w", d.Dst, util.ErrNotConnected)
	}
	if err := a.transport.Send(rtnl.OffloadReply(d)); err != nil {
		a.observer.OffloadAck(false)
		return fmt.Errorf("offload ack %s: %w", d.Dst, err)
	}
	a.observer.OffloadAck(true)
	return nil
}
