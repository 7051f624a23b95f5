package daemon

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/internal/testutil"
	"github.com/newtron-network/fpmsyncd/pkg/config"
	"github.com/newtron-network/fpmsyncd/pkg/fpm"
	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
)

const (
	idxEthernet0 = 5
	idxVrf10     = 1001

	vrfRouteKey = "ROUTE_TABLE:Vrf10:10.0.0.0/24"
	wait        = 5 * time.Second
)

type harness struct {
	mr   *miniredis.Miniredis
	cfg  *config.Config
	d    *Daemon
	peer net.Conn
	done chan error
}

// start runs a daemon against an in-process redis. setup may adjust the
// config and seed redis before the daemon starts.
func start(t *testing.T, setup func(h *harness)) *harness {
	t.Helper()
	h := &harness{mr: testutil.StartRedis(t), cfg: config.Default(), done: make(chan error, 1)}
	h.cfg.Redis.Addr = h.mr.Addr()
	h.cfg.FPM.Listen = "127.0.0.1:0"
	h.cfg.Offload.PollInterval = 0
	if setup != nil {
		setup(h)
	}

	d, err := New(h.cfg, testutil.NewNames(map[int]string{
		idxEthernet0: "Ethernet0",
		idxVrf10:     "Vrf10",
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.d = d

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(wait):
			t.Error("Run did not return")
		}
	})

	h.peer, err = net.Dial("tcp", d.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { h.peer.Close() })
	return h
}

func (h *harness) send(t *testing.T, r testutil.Route) {
	t.Helper()
	b, err := fpm.Frame(r.Bytes())
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if _, err := h.peer.Write(b); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

func (h *harness) readAck(t *testing.T, timeout time.Duration) (*rtnl.RouteMsg, error) {
	t.Helper()
	h.peer.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := fpm.ReadFrame(h.peer)
	if err != nil {
		return nil, err
	}
	return rtnl.ParseMessage(payload)
}

// entry reads a live hash. APPL_DB changes staged by the daemon are
// consumed first, as orchagent would.
func (h *harness) entry(t *testing.T, db int, key string) map[string]string {
	t.Helper()
	if db == sonic.ApplDBNum {
		h.consume(t)
	}
	return testutil.ReadEntry(t, h.mr.Addr(), db, key)
}

func (h *harness) consume(t *testing.T) {
	t.Helper()
	testutil.ConsumeTables(t, h.mr.Addr(), sonic.ApplDBNum, sonic.Tables...)
}

func (h *harness) applied(t *testing.T, key string) bool {
	t.Helper()
	h.consume(t)
	return testutil.EntryExists(t, h.mr.Addr(), sonic.ApplDBNum, key)
}

func vrfRoute() testutil.Route {
	return testutil.Route{
		Type:      unix.RTM_NEWROUTE,
		Family:    unix.AF_INET,
		DstLen:    24,
		Table:     unix.RT_TABLE_UNSPEC,
		Protocol:  200,
		RouteType: unix.RTN_UNICAST,
		Attrs: []nl.NetlinkRequestData{
			testutil.IP(unix.RTA_DST, "10.0.0.0"),
			testutil.U32(unix.RTA_TABLE, idxVrf10),
			testutil.IP(unix.RTA_GATEWAY, "10.1.1.1"),
			testutil.U32(unix.RTA_OIF, idxEthernet0),
		},
	}
}

func TestDaemon_RouteWrittenAndAcknowledged(t *testing.T) {
	h := start(t, nil)
	h.send(t, vrfRoute())

	ack, err := h.readAck(t, wait)
	if err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if ack.TableID() != idxVrf10 || ack.Protocol != 200 || ack.RtFlags&unix.RTM_F_OFFLOAD == 0 {
		t.Errorf("ack table %d proto %d flags %#x", ack.TableID(), ack.Protocol, ack.RtFlags)
	}

	got := h.entry(t, sonic.ApplDBNum, vrfRouteKey)
	want := map[string]string{"protocol": "200", "nexthop": "10.1.1.1", "ifname": "Ethernet0"}
	if !sonic.EqualFields(got, want) {
		t.Errorf("%s = %v, want %v", vrfRouteKey, got, want)
	}
	if testutil.EntryExists(t, h.mr.Addr(), sonic.StateDBNum, "WARM_RESTART_TABLE|bgp") {
		t.Error("warm restart state written with warm restart disabled")
	}
}

func TestDaemon_WarmRestart(t *testing.T) {
	h := start(t, func(h *harness) {
		h.cfg.WarmRestart.Timer = time.Hour
		testutil.SeedRedis(t, h.mr.Addr(), sonic.StateDBNum, `{
			"WARM_RESTART_ENABLE_TABLE|bgp": {"enable": "true"}
		}`)
		testutil.SeedRedis(t, h.mr.Addr(), sonic.ApplDBNum, `{
			"ROUTE_TABLE:10.9.0.0/16": {"protocol": "bgp", "nexthop": "10.1.1.9", "ifname": "Ethernet0"},
			"ROUTE_TABLE:Vrf10:10.0.0.0/24": {"protocol": "200", "nexthop": "10.1.1.2", "ifname": "Ethernet0"}
		}`)
	})

	stateKey := "WARM_RESTART_TABLE|bgp"
	testutil.Eventually(t, wait, func() bool {
		return h.entry(t, sonic.StateDBNum, stateKey)["state"] == "restored"
	}, "state never reached restored")

	h.send(t, vrfRoute())
	if _, err := h.readAck(t, wait); err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if got := h.entry(t, sonic.ApplDBNum, vrfRouteKey)["nexthop"]; got != "10.1.1.2" {
		t.Errorf("route rewritten before reconciliation: nexthop %q", got)
	}

	h.d.RequestReconcile()
	testutil.Eventually(t, wait, func() bool {
		return h.entry(t, sonic.StateDBNum, stateKey)["state"] == "reconciled"
	}, "state never reached reconciled")

	if h.applied(t, "ROUTE_TABLE:10.9.0.0/16") {
		t.Error("stale route survived reconciliation")
	}
	if n := testutil.KeyCount(t, h.mr.Addr(), sonic.ApplDBNum, "ROUTE_TABLE:*"); n != 1 {
		t.Errorf("%d ROUTE_TABLE keys after reconciliation, want 1", n)
	}
	if got := h.entry(t, sonic.ApplDBNum, vrfRouteKey)["nexthop"]; got != "10.1.1.1" {
		t.Errorf("reconciled nexthop = %q, want 10.1.1.1", got)
	}
	if got := h.entry(t, sonic.StateDBNum, stateKey)["restore_count"]; got != "1" {
		t.Errorf("restore_count = %q, want 1", got)
	}

	// After reconciliation writes go straight through.
	del := vrfRoute()
	del.Type = unix.RTM_DELROUTE
	h.send(t, del)
	testutil.Eventually(t, wait, func() bool {
		return !h.applied(t, vrfRouteKey)
	}, "delete not applied after reconciliation")
}

func TestDaemon_SuppressedAcknowledgment(t *testing.T) {
	h := start(t, func(h *harness) {
		testutil.SeedRedis(t, h.mr.Addr(), sonic.ConfigDBNum, `{
			"DEVICE_METADATA|localhost": {"suppress-fib-pending": "enabled"}
		}`)
	})

	h.send(t, vrfRoute())
	testutil.Eventually(t, wait, func() bool {
		return h.applied(t, vrfRouteKey)
	}, "route never written")

	_, err := h.readAck(t, 200*time.Millisecond)
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected no ack before the response, got %v", err)
	}

	payload, err := sonic.EncodeResponse(&sonic.Response{
		Op:  "SET",
		Key: "Vrf10:10.0.0.0/24",
		Fields: map[string]string{
			"err_str":  sonic.StatusSuccess,
			"protocol": "200",
		},
	})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	h.mr.Publish(sonic.RouteResponseChannel, payload)

	ack, err := h.readAck(t, wait)
	if err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if ack.TableID() != idxVrf10 || ack.Protocol != 200 {
		t.Errorf("ack table %d proto %d", ack.TableID(), ack.Protocol)
	}
}

func TestDaemon_RequestReconcileWithoutWarmRestart(t *testing.T) {
	h := start(t, nil)
	h.d.RequestReconcile()
	h.d.RequestReconcile()

	h.send(t, vrfRoute())
	if _, err := h.readAck(t, wait); err != nil {
		t.Fatalf("daemon stopped serving: %v", err)
	}
}
