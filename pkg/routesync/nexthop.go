package routesync

import (
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/rtnl"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

const (
	// UnknownIfname stands in for an egress interface that cannot be
	// resolved.
	UnknownIfname = "unknown"
	// NoLabelOp stands in for a hop without an MPLS operation when some
	// other hop of the route has one.
	NoLabelOp = "na"

	listSeparator  = ","
	labelSeparator = "/"
)

// nextHops holds the per-hop values of a route as index-aligned lists.
type nextHops struct {
	gateways []string
	ifnames  []string
	weights  []uint32
	labelOps []string
	hasLabel bool
}

func (n *nextHops) len() int { return len(n.gateways) }

// gatewayList and the other list accessors join per-hop values in message
// order.
func (n *nextHops) gatewayList() string { return strings.Join(n.gateways, listSeparator) }

func (n *nextHops) ifnameList() string { return strings.Join(n.ifnames, listSeparator) }

// weightList is empty unless every hop has a non-zero weight.
func (n *nextHops) weightList() string {
	if len(n.weights) == 0 {
		return ""
	}
	out := make([]string, len(n.weights))
	for i, w := range n.weights {
		if w == 0 {
			return ""
		}
		out[i] = strconv.FormatUint(uint64(w), 10)
	}
	return strings.Join(out, listSeparator)
}

// labelOpList is empty unless some hop pushes or swaps labels.
func (n *nextHops) labelOpList() string {
	if !n.hasLabel {
		return ""
	}
	return strings.Join(n.labelOps, listSeparator)
}

// hasIfname reports whether any hop egresses through one of names.
func (n *nextHops) hasIfname(names ...string) bool {
	for _, ifname := range n.ifnames {
		for _, name := range names {
			if ifname == name {
				return true
			}
		}
	}
	return false
}

// hasGateway reports whether any hop has a non-zero gateway.
func (n *nextHops) hasGateway() bool {
	for _, gw := range n.gateways {
		if !util.IsZeroAddr(gw) {
			return true
		}
	}
	return false
}

// routeFields returns the ROUTE_TABLE / LABEL_ROUTE_TABLE next-hop fields.
func (n *nextHops) routeFields() map[string]string {
	f := map[string]string{
		"nexthop": n.gatewayList(),
		"ifname":  n.ifnameList(),
	}
	if ops := n.labelOpList(); ops != "" {
		f["mpls_nh"] = ops
	}
	if w := n.weightList(); w != "" {
		f["weight"] = w
	}
	return f
}

// resolveNextHops builds the next-hop lists of m. Hops without a gateway
// get the family's zero address; unresolvable interfaces get
// UnknownIfname. Lists never shorten.
func (s *Syncer) resolveNextHops(m *rtnl.RouteMsg) *nextHops {
	hops, truncated := m.NextHops()
	if truncated {
		util.Logger.Debugf("multipath chain truncated after %d hops", len(hops))
	}

	zero := util.ZeroAddr(m.Family == unix.AF_INET6)
	n := &nextHops{}
	for i := range hops {
		h := &hops[i]

		n.gateways = append(n.gateways, hopGateway(h, zero))
		n.ifnames = append(n.ifnames, s.ifname(h.IfIndex))
		n.weights = append(n.weights, h.Weight)

		op := labelOp(h)
		if op != NoLabelOp {
			n.hasLabel = true
		}
		n.labelOps = append(n.labelOps, op)
	}
	return n
}

// hopGateway returns the hop's RTA_GATEWAY, else its RTA_VIA address
// (MPLS and RFC 5549 next hops), else zero.
func hopGateway(h *rtnl.NextHop, zero string) string {
	if ip, ok := h.Attrs.Addr(unix.RTA_GATEWAY); ok {
		return ip.String()
	}
	if ip, ok := h.Attrs.Via(unix.RTA_VIA); ok {
		return ip.String()
	}
	return zero
}

// labelOp returns "swap<label>", "push<l1/l2/...>" or NoLabelOp.
func labelOp(h *rtnl.NextHop) string {
	if labels, ok := h.Attrs.Labels(unix.RTA_NEWDST); ok {
		return "swap" + joinLabels(labels)
	}
	if t, ok := h.EncapType(); ok && t == rtnl.EncapMPLS {
		if encap, ok := h.Encap(); ok {
			if labels, ok := encap.Labels(rtnl.MPLSTunnelDst); ok {
				return "push" + joinLabels(labels)
			}
		}
	}
	return NoLabelOp
}

func joinLabels(labels []uint32) string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strconv.FormatUint(uint64(l), 10)
	}
	return strings.Join(out, labelSeparator)
}

// ifname resolves an egress interface, substituting UnknownIfname.
func (s *Syncer) ifname(index int) string {
	if index <= 0 {
		return UnknownIfname
	}
	name, err := s.names.Name(index)
	if err != nil {
		util.WithField("ifindex", index).Debugf("egress interface: %v", err)
		return UnknownIfname
	}
	return name
}
