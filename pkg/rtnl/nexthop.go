package rtnl

import (
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// NextHop is one undecoded next hop. For single-path routes the attributes
// are the route's own top level; for multipath routes they are the nested
// block following the rtnexthop header.
type NextHop struct {
	IfIndex int
	Flags   uint8
	// Weight is rtnh_hops+1 for multipath members and 0 for single-path routes.
	Weight uint32
	Attrs  *Attrs
}

// NextHops returns the route's next hops in message order. Walking a
// multipath chain stops at the first truncated or zero-length record;
// truncated reports that this happened.
func (m *RouteMsg) NextHops() (hops []NextHop, truncated bool) {
	if mp, ok := m.Attrs.Bytes(unix.RTA_MULTIPATH); ok {
		return parseMultipath(mp)
	}
	a := m.Attrs
	if !a.Has(unix.RTA_OIF) && !a.Has(unix.RTA_GATEWAY) && !a.Has(unix.RTA_VIA) && !a.Has(unix.RTA_ENCAP) {
		return nil, false
	}
	oif, _ := a.Uint32(unix.RTA_OIF)
	return []NextHop{{IfIndex: int(oif), Attrs: a}}, false
}

// IsMultipath reports whether the route carries an RTA_MULTIPATH block.
func (m *RouteMsg) IsMultipath() bool {
	return m.Attrs.Has(unix.RTA_MULTIPATH)
}

func parseMultipath(b []byte) ([]NextHop, bool) {
	var hops []NextHop
	for len(b) >= unix.SizeofRtNexthop {
		l := int(nlenc.Uint16(b[0:2]))
		if l < unix.SizeofRtNexthop || l > len(b) {
			return hops, true
		}
		hops = append(hops, NextHop{
			Flags:   b[2],
			Weight:  uint32(b[3]) + 1,
			IfIndex: int(nlenc.Int32(b[4:8])),
			Attrs:   ParseAttrs(b[unix.SizeofRtNexthop:l], RouteAttrMax),
		})
		next := align4(l)
		if next >= len(b) {
			return hops, false
		}
		b = b[next:]
	}
	return hops, len(b) > 0
}

// EncapType returns the next hop's RTA_ENCAP_TYPE.
func (h *NextHop) EncapType() (uint16, bool) {
	return h.Attrs.Uint16(unix.RTA_ENCAP_TYPE)
}

// Encap decodes the next hop's RTA_ENCAP payload using the layout of its
// encapsulation type. Unknown types report absent.
func (h *NextHop) Encap() (*Attrs, bool) {
	t, ok := h.EncapType()
	if !ok {
		return nil, false
	}
	n := NestedMax(t)
	if n < 0 {
		return nil, false
	}
	return h.Attrs.Nested(unix.RTA_ENCAP, n)
}
