package routesync

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

type adjKind int

const (
	adjNone adjKind = iota
	adjIPv4
	adjIPv6
)

// sidAction describes a local SID behavior and the fields it requires.
type sidAction struct {
	name     string
	needsVRF bool
	adj      adjKind
}

var sidActions = map[uint32]sidAction{
	rtnl.ActionEnd:         {name: "end"},
	rtnl.ActionEndX:        {name: "end.x", adj: adjIPv6},
	rtnl.ActionEndT:        {name: "end.t", needsVRF: true},
	rtnl.ActionEndDX2:      {name: "end.dx2"},
	rtnl.ActionEndDX6:      {name: "end.dx6", adj: adjIPv6},
	rtnl.ActionEndDX4:      {name: "end.dx4", adj: adjIPv4},
	rtnl.ActionEndDT6:      {name: "end.dt6", needsVRF: true},
	rtnl.ActionEndDT4:      {name: "end.dt4", needsVRF: true},
	rtnl.ActionEndDT46:     {name: "end.dt46", needsVRF: true},
	rtnl.ActionB6Encaps:    {name: "b6.encaps"},
	rtnl.ActionB6EncapsRed: {name: "b6.encaps.red"},
	rtnl.ActionB6Insert:    {name: "b6.insert"},
	rtnl.ActionB6InsertRed: {name: "b6.insert.red"},
	rtnl.ActionUN:          {name: "un"},
	rtnl.ActionUA:          {name: "ua", adj: adjIPv6},
	rtnl.ActionUDX2:        {name: "udx2"},
	rtnl.ActionUDX6:        {name: "udx6", adj: adjIPv6},
	rtnl.ActionUDX4:        {name: "udx4", adj: adjIPv4},
	rtnl.ActionUDT6:        {name: "udt6", needsVRF: true},
	rtnl.ActionUDT4:        {name: "udt4", needsVRF: true},
	rtnl.ActionUDT46:       {name: "udt46", needsVRF: true},
}

var sidActionCodes = func() map[string]uint32 {
	m := make(map[string]uint32, len(sidActions))
	for code, a := range sidActions {
		m[a.name] = code
	}
	return m
}()

// ActionName returns the APPL_DB name of a local SID action code.
func ActionName(code uint32) (string, bool) {
	a, ok := sidActions[code]
	return a.name, ok
}

// ActionCode is the inverse of ActionName.
func ActionCode(name string) (uint32, bool) {
	code, ok := sidActionCodes[name]
	return code, ok
}

// buildSRv6Steer fills p with a steering route: a segment list holding the
// VPN SID and a route record pointing at it.
func (s *Syncer) buildSRv6Steer(p *plan, m *rtnl.RouteMsg, dst *net.IPNet) error {
	if m.IsMultipath() {
		return util.NewUnsupportedError(p.key, "multipath SRv6 steering")
	}
	if !m.Attrs.Has(unix.RTA_DST) {
		return util.NewDecodeError("SRv6 steering route", "missing RTA_DST")
	}

	hops, _ := m.NextHops()
	if len(hops) == 0 {
		return util.NewRuleError(p.key, "no next hop")
	}
	encap, ok := hops[0].Encap()
	if !ok {
		return util.NewDecodeError("SRv6 steering route", "undecodable RTA_ENCAP")
	}
	vpnSID, ok := encap.Addr(rtnl.SRv6EncapVPNSID)
	if !ok || vpnSID.IsUnspecified() {
		return util.NewRuleError(p.key, "empty VPN SID")
	}

	route := map[string]string{"segment": p.key}
	if src, ok := encap.Addr(rtnl.SRv6EncapSrcAddr); ok && !src.IsUnspecified() {
		route["seg_src"] = src.String()
	}
	p.changes = []sonic.TableChange{
		sonic.Set(sonic.SRv6SIDListTable, p.key, map[string]string{"path": vpnSID.String()}),
		sonic.Set(sonic.RouteTable, p.key, route),
	}
	p.ack = descriptor(m, dst)
	return nil
}

// buildMySID builds an SRV6_MY_SID_TABLE record from a local SID message.
func (s *Syncer) buildMySID(m *rtnl.RouteMsg) (*plan, error) {
	p := &plan{family: FamilyMySID}

	raw, ok := m.Attrs.Bytes(rtnl.LocalSIDValue)
	if !ok {
		return p, util.NewDecodeError("local SID", "missing SID value")
	}
	if m.Family != unix.AF_INET6 || len(raw) != net.IPv6len {
		return p, util.NewRuleError(fmt.Sprintf("%x", raw), "local SID must be IPv6")
	}
	sid, _ := m.Attrs.Addr(rtnl.LocalSIDValue)

	key, err := sidKey(m, sid)
	if err != nil {
		return p, err
	}
	p.key = key.String()

	if m.IsDelete() {
		p.changes = []sonic.TableChange{sonic.Del(sonic.SRv6MySIDTable, p.key)}
		return p, nil
	}

	code, ok := m.Attrs.Uint32(rtnl.LocalSIDAction)
	if !ok {
		return p, util.NewDecodeError("local SID", "missing action")
	}
	action, ok := sidActions[code]
	if !ok {
		return p, util.NewRuleError(p.key, fmt.Sprintf("unsupported action %d", code))
	}

	fields := map[string]string{"action": action.name}
	if action.needsVRF {
		vrf, _ := m.Attrs.String(rtnl.LocalSIDVRFName)
		if vrf == "" {
			return p, util.NewRuleError(p.key, fmt.Sprintf("action %s requires a VRF", action.name))
		}
		fields["vrf"] = vrf
	}
	if action.adj != adjNone {
		t := rtnl.LocalSIDNH6
		if action.adj == adjIPv4 {
			t = rtnl.LocalSIDNH4
		}
		adj, ok := m.Attrs.Addr(t)
		if !ok || adj.IsUnspecified() {
			return p, util.NewRuleError(p.key, fmt.Sprintf("action %s requires an adjacency", action.name))
		}
		fields["adj"] = adj.String()
	}

	p.changes = []sonic.TableChange{sonic.Set(sonic.SRv6MySIDTable, p.key, fields)}
	return p, nil
}

// sidKey reads the locator format. Each length defaults independently; a
// length that is present must be a u8.
func sidKey(m *rtnl.RouteMsg, sid net.IP) (SIDKey, error) {
	k := SIDKey{
		BlockLen: DefaultBlockLen,
		NodeLen:  DefaultNodeLen,
		FuncLen:  DefaultFuncLen,
		ArgLen:   DefaultArgLen,
		SID:      sid,
	}
	format, ok := m.Attrs.Nested(rtnl.LocalSIDFormat, rtnl.FormatMax)
	if !ok {
		return k, nil
	}
	for _, f := range []struct {
		attr uint16
		dst  *uint8
	}{
		{rtnl.FormatBlockLen, &k.BlockLen},
		{rtnl.FormatNodeLen, &k.NodeLen},
		{rtnl.FormatFuncLen, &k.FuncLen},
		{rtnl.FormatArgLen, &k.ArgLen},
	} {
		if !format.Has(f.attr) {
			continue
		}
		v, ok := format.Uint8(f.attr)
		if !ok {
			return k, util.NewDecodeError("local SID format", fmt.Sprintf("attribute %d", f.attr))
		}
		*f.dst = v
	}
	return k, nil
}
