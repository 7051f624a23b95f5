package routesync

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// buildEVPN fills p with an EVPN type-5 route. Every hop must carry a
// non-zero VNI, a non-zero router MAC and a resolvable interface; one bad
// hop rejects the route.
func (s *Syncer) buildEVPN(p *plan, m *rtnl.RouteMsg, dst *net.IPNet) error {
	hops, _ := m.NextHops()
	if len(hops) == 0 {
		return util.NewRuleError(p.key, "no next hop")
	}

	zero := util.ZeroAddr(m.Family == unix.AF_INET6)
	gateways := make([]string, 0, len(hops))
	vnis := make([]string, 0, len(hops))
	macs := make([]string, 0, len(hops))
	ifnames := make([]string, 0, len(hops))

	for i := range hops {
		h := &hops[i]

		gw := hopGateway(h, zero)

		var vni uint32
		var rmac net.HardwareAddr
		if t, ok := h.EncapType(); ok && t == rtnl.EncapVXLAN {
			if encap, ok := h.Encap(); ok {
				vni, _ = encap.Uint32(rtnl.VXLANVNI)
				rmac, _ = encap.MAC(rtnl.VXLANRMAC)
			}
		}
		ifname := s.ifname(h.IfIndex)

		switch {
		case vni == 0:
			return util.NewRuleError(p.key, fmt.Sprintf("next hop %d: VNI is zero", i))
		case ifname == UnknownIfname:
			return util.NewRuleError(p.key, fmt.Sprintf("next hop %d: interface %d unresolved", i, h.IfIndex))
		case util.IsZeroMAC(rmac):
			return util.NewRuleError(p.key, fmt.Sprintf("next hop %d: router MAC is zero", i))
		}

		gateways = append(gateways, gw)
		vnis = append(vnis, strconv.FormatUint(uint64(vni), 10))
		macs = append(macs, rmac.String())
		ifnames = append(ifnames, ifname)
	}

	p.changes = []sonic.TableChange{sonic.Set(sonic.RouteTable, p.key, map[string]string{
		"nexthop":    strings.Join(gateways, listSeparator),
		"ifname":     strings.Join(ifnames, listSeparator),
		"vni_label":  strings.Join(vnis, listSeparator),
		"router_mac": strings.Join(macs, listSeparator),
		"protocol":   ProtocolName(m.Protocol),
	})}
	p.ack = descriptor(m, dst)
	return nil
}
