package routesync

import (
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Interfaces whose routes never reach the data plane.
var hostOnlyIfnames = []string{"eth0", "docker0"}

// buildRoute fills p with a plain ROUTE_TABLE record.
func (s *Syncer) buildRoute(p *plan, m *rtnl.RouteMsg, dst *net.IPNet) error {
	nh := s.resolveNextHops(m)
	if nh.len() == 0 {
		return util.NewRuleError(p.key, "no next hop")
	}

	if nh.hasIfname(hostOnlyIfnames...) {
		if nh.len() == 1 {
			// The route moved to a host-only interface; withdraw any
			// record left from before.
			util.WithRoute(p.key).Debugf("route via %s withdrawn", nh.ifnameList())
			p.changes = []sonic.TableChange{sonic.Del(sonic.RouteTable, p.key)}
			return nil
		}
		return util.NewRuleError(p.key, "next hops mix host-only and data plane interfaces: "+nh.ifnameList())
	}

	fields := nh.routeFields()
	fields["protocol"] = ProtocolName(m.Protocol)
	p.changes = []sonic.TableChange{sonic.Set(sonic.RouteTable, p.key, fields)}
	p.ack = descriptor(m, dst)
	return nil
}

// buildLabel builds an MPLS label route keyed by its top label.
func (s *Syncer) buildLabel(m *rtnl.RouteMsg) (*plan, error) {
	p := &plan{family: FamilyLabel}
	labels, ok := m.Attrs.Labels(unix.RTA_DST)
	if !ok {
		return p, util.NewDecodeError("label route", "missing RTA_DST")
	}
	p.key = strconv.FormatUint(uint64(labels[0]), 10)

	if m.IsDelete() {
		p.changes = []sonic.TableChange{sonic.Del(sonic.LabelRouteTable, p.key)}
		return p, nil
	}

	blackhole, err := checkRouteType(m, p.key, true)
	if err != nil {
		return p, err
	}
	if blackhole {
		p.changes = []sonic.TableChange{sonic.Set(sonic.LabelRouteTable, p.key, map[string]string{"blackhole": "true"})}
		return p, nil
	}

	nh := s.resolveNextHops(m)
	if nh.len() == 0 {
		return p, util.NewRuleError(p.key, "no next hop")
	}
	fields := nh.routeFields()
	fields["mpls_pop"] = "1"
	p.changes = []sonic.TableChange{sonic.Set(sonic.LabelRouteTable, p.key, fields)}
	return p, nil
}

// buildVNET builds a VNET route: a tunnel route when a hop egresses a VXLAN
// bridge, else a local route.
func (s *Syncer) buildVNET(m *rtnl.RouteMsg, vnet string, dst *net.IPNet) (*plan, error) {
	key := NewRouteKey(vnet, dst).String()
	p := &plan{family: FamilyVNET, key: key}

	if m.IsDelete() {
		p.changes = []sonic.TableChange{
			sonic.Del(sonic.VnetRouteTunnelTable, key),
			sonic.Del(sonic.VnetRouteTable, key),
		}
		return p, nil
	}

	if _, err := checkRouteType(m, key, false); err != nil {
		return p, err
	}

	nh := s.resolveNextHops(m)
	if nh.len() == 0 {
		return p, util.NewRuleError(key, "no next hop")
	}

	for _, ifname := range nh.ifnames {
		if strings.HasPrefix(ifname, VXLANIfPrefix) {
			p.changes = []sonic.TableChange{sonic.Set(sonic.VnetRouteTunnelTable, key, map[string]string{
				"endpoint": nh.gatewayList(),
			})}
			return p, nil
		}
	}

	fields := map[string]string{"ifname": nh.ifnameList()}
	if nh.hasGateway() {
		fields["nexthop"] = nh.gatewayList()
	}
	p.changes = []sonic.TableChange{sonic.Set(sonic.VnetRouteTable, key, fields)}
	return p, nil
}
