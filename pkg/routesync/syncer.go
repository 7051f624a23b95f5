// Package routesync turns decoded route messages into APPL_DB records.
//
// Each message is classified into one family (regular, VRF, VNET, MPLS
// label, EVPN/VXLAN, SRv6 steering or SRv6 local SID), built into the full
// set of table changes for that route, and written in one call so that a
// rejected route never leaves a partial record. Routes that land in
// ROUTE_TABLE are acknowledged back to the routing stack as offloaded.
package routesync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// NameResolver maps interface indexes to names and back.
type NameResolver interface {
	Name(index int) (string, error)
	Index(name string) (int, error)
}

// errSkip marks routes that are deliberately not written.
var errSkip = errors.New("route skipped")

// Syncer processes route messages one at a time.
type Syncer struct {
	names    NameResolver
	store    sonic.Store
	ack      *Acknowledger
	observer Observer
}

// NewSyncer creates a syncer writing to store.
func NewSyncer(names NameResolver, store sonic.Store) *Syncer {
	return &Syncer{names: names, store: store, observer: nopObserver{}}
}

// SetAcknowledger enables offload acknowledgments.
func (s *Syncer) SetAcknowledger(a *Acknowledger) {
	s.ack = a
}

// SetObserver sets the outcome observer.
func (s *Syncer) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// plan is the complete outcome of one message.
type plan struct {
	family  string
	key     string
	changes []sonic.TableChange
	ack     *rtnl.RouteDescriptor
}

// HandleBuffer processes every netlink message in b.
func (s *Syncer) HandleBuffer(ctx context.Context, b []byte) {
	msgs, err := rtnl.SplitMessages(b)
	for _, msg := range msgs {
		s.HandleMessage(ctx, msg)
	}
	if err != nil {
		s.report(FamilyUnknown, err)
	}
}

// HandleMessage decodes and processes one message. Failures are logged at
// the level their class calls for; none escapes.
func (s *Syncer) HandleMessage(ctx context.Context, b []byte) {
	m, err := rtnl.ParseMessage(b)
	if err != nil {
		s.report(FamilyUnknown, err)
		return
	}
	if m.Attrs.Truncated() {
		util.WithField("type", m.Type).Debug("attribute list truncated, using attributes decoded so far")
	}
	family, err := s.process(ctx, m)
	s.report(family, err)
}

// Process classifies, builds and writes one decoded message.
func (s *Syncer) Process(ctx context.Context, m *rtnl.RouteMsg) error {
	_, err := s.process(ctx, m)
	return err
}

func (s *Syncer) process(ctx context.Context, m *rtnl.RouteMsg) (string, error) {
	p, err := s.classify(m)
	if err != nil {
		return p.family, err
	}
	if err := s.store.Apply(ctx, p.changes...); err != nil {
		return p.family, fmt.Errorf("writing %s: %w", p.key, err)
	}
	if p.ack != nil && s.ack != nil {
		if err := s.ack.Written(p.ack); err != nil {
			util.WithRoute(p.key).Errorf("offload ack: %v", err)
		}
	}
	return p.family, nil
}

// report logs a message outcome by error class.
func (s *Syncer) report(family string, err error) {
	if err == nil {
		s.observer.RouteProcessed(family)
		return
	}
	log := util.WithField("family", family)
	var reason string
	var level logrus.Level
	switch {
	case errors.Is(err, errSkip):
		reason, level = ReasonSkipped, logrus.DebugLevel
	case errors.Is(err, util.ErrMalformed):
		reason, level = ReasonMalformed, logrus.ErrorLevel
	case errors.Is(err, util.ErrUnsupported):
		reason, level = ReasonUnsupported, logrus.InfoLevel
	case errors.Is(err, util.ErrInvalidRoute):
		reason, level = ReasonInvalid, logrus.WarnLevel
	default:
		reason, level = ReasonWrite, logrus.ErrorLevel
	}
	s.observer.RouteDropped(family, reason)
	log.WithField("reason", reason).Logf(level, "dropping route: %v", err)
}

// classify selects the builder for m and runs it. The returned plan is
// never nil; on error it still names the family.
func (s *Syncer) classify(m *rtnl.RouteMsg) (*plan, error) {
	if rtnl.IsLocalSIDMsg(m.Type) {
		return s.buildMySID(m)
	}
	switch m.Family {
	case unix.AF_MPLS:
		return s.buildLabel(m)
	case unix.AF_INET, unix.AF_INET6:
	default:
		return &plan{family: FamilyUnknown}, util.NewUnsupportedError("", fmt.Sprintf("address family %d", m.Family))
	}

	dst, err := destination(m)
	if err != nil {
		return &plan{family: FamilyUnknown}, err
	}

	master := s.master(m.TableID())
	if strings.HasPrefix(master, VNETPrefix) {
		return s.buildVNET(m, master, dst)
	}

	family := FamilyRoute
	if master != "" {
		family = FamilyVRF
	}
	key := NewRouteKey("", dst)
	vrf, err := vrfName(master, key.String())
	if err != nil {
		return &plan{family: family, key: key.String()}, err
	}
	key.VRF = vrf
	p := &plan{family: family, key: key.String()}

	encap := firstEncap(m)
	switch encap {
	case rtnl.EncapVXLAN:
		p.family = FamilyEVPN
	case rtnl.EncapSRv6Route:
		p.family = FamilySRv6Steer
	}

	if m.IsDelete() {
		// Whatever the family, the route record goes; a steering route also
		// owns a segment list under the same key.
		p.changes = []sonic.TableChange{
			sonic.Del(sonic.RouteTable, p.key),
			sonic.Del(sonic.SRv6SIDListTable, p.key),
		}
		return p, nil
	}

	blackhole, err := checkRouteType(m, p.key, vrf != "")
	if err != nil {
		return p, err
	}
	if blackhole {
		p.changes = []sonic.TableChange{sonic.Set(sonic.RouteTable, p.key, map[string]string{
			"blackhole": "true",
			"protocol":  ProtocolName(m.Protocol),
		})}
		p.ack = descriptor(m, dst)
		return p, nil
	}

	switch encap {
	case rtnl.EncapVXLAN:
		return p, s.buildEVPN(p, m, dst)
	case rtnl.EncapSRv6Route:
		return p, s.buildSRv6Steer(p, m, dst)
	}
	return p, s.buildRoute(p, m, dst)
}

// master resolves a route's table to its master device name. The main and
// unnamed tables, and tables that cannot be resolved, are the default VRF.
func (s *Syncer) master(table uint32) string {
	switch table {
	case unix.RT_TABLE_UNSPEC, unix.RT_TABLE_DEFAULT, unix.RT_TABLE_MAIN, unix.RT_TABLE_LOCAL:
		return ""
	}
	name, err := s.names.Name(int(table))
	if err != nil {
		util.WithField("table", table).Debugf("master device: %v", err)
		return ""
	}
	return name
}

// vrfName validates a master device as a VRF. Management VRF routes are
// skipped without complaint; any other non-VRF master is a rule violation.
func vrfName(master, key string) (string, error) {
	switch {
	case master == "":
		return "", nil
	case strings.HasPrefix(master, VRFPrefix):
		return master, nil
	case strings.HasPrefix(master, MgmtVRFPrefix):
		return "", fmt.Errorf("%s in management VRF %s: %w", key, master, errSkip)
	}
	return "", util.NewRuleError(key, fmt.Sprintf("master device %q is not a VRF", master))
}

// destination returns the route's destination prefix. A missing RTA_DST
// with a zero prefix length is the default route.
func destination(m *rtnl.RouteMsg) (*net.IPNet, error) {
	v6 := m.Family == unix.AF_INET6
	bits := 32
	if v6 {
		bits = 128
	}
	if int(m.DstLen) > bits {
		return nil, util.NewDecodeError("rtmsg", fmt.Sprintf("prefix length %d", m.DstLen))
	}

	raw, ok := m.Attrs.Bytes(unix.RTA_DST)
	var ip net.IP
	switch {
	case ok && len(raw)*8 != bits:
		return nil, util.NewDecodeError("RTA_DST", fmt.Sprintf("%d-byte address in a /%d family", len(raw), bits))
	case ok:
		ip = make(net.IP, len(raw))
		copy(ip, raw)
	case m.DstLen != 0:
		return nil, util.NewDecodeError("route", "missing RTA_DST")
	case v6:
		ip = net.IPv6zero
	default:
		ip = net.IPv4zero.To4()
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(int(m.DstLen), bits)}, nil
}

// descriptor is the offload acknowledgment identity of a route.
func descriptor(m *rtnl.RouteMsg, dst *net.IPNet) *rtnl.RouteDescriptor {
	return &rtnl.RouteDescriptor{Dst: dst, Protocol: m.Protocol, Table: m.TableID()}
}

// firstEncap returns the encapsulation type of the first next hop when it
// also carries an encapsulation payload, else 0.
func firstEncap(m *rtnl.RouteMsg) uint16 {
	hops, _ := m.NextHops()
	if len(hops) == 0 || !hops[0].Attrs.Has(unix.RTA_ENCAP) {
		return 0
	}
	t, _ := hops[0].EncapType()
	return t
}

// checkRouteType admits unicast routes, and blackhole routes where the
// family records them.
func checkRouteType(m *rtnl.RouteMsg, key string, blackholeOK bool) (blackhole bool, err error) {
	switch m.RouteType {
	case unix.RTN_UNICAST:
		return false, nil
	case unix.RTN_BLACKHOLE:
		if blackholeOK {
			return true, nil
		}
		return false, util.NewRuleError(key, "unexpected blackhole route outside a VRF")
	case unix.RTN_UNREACHABLE:
		return false, util.NewRuleError(key, "unexpected unreachable route")
	case unix.RTN_PROHIBIT:
		return false, util.NewRuleError(key, "unexpected prohibit route")
	case unix.RTN_MULTICAST, unix.RTN_BROADCAST, unix.RTN_LOCAL:
		return false, util.NewUnsupportedError(key, fmt.Sprintf("route type %d", m.RouteType))
	}
	return false, util.NewUnsupportedError(key, fmt.Sprintf("unknown route type %d", m.RouteType))
}
