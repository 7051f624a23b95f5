// Package testutil provides helpers shared by package tests: rtnetlink
// message builders, fake collaborators, and redis fixtures.
package testutil

import (
	"encoding/binary"
	"net"
	"strings"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// Route describes a route message to serialize.
type Route struct {
	Type      uint16
	Family    uint8
	DstLen    uint8
	Table     uint8
	Protocol  uint8
	RouteType uint8
	Attrs     []nl.NetlinkRequestData
}

// Bytes serializes the route as a complete netlink message.
func (r Route) Bytes() []byte {
	req := nl.NewNetlinkRequest(int(r.Type), 0)
	req.AddData(&nl.RtMsg{RtMsg: unix.RtMsg{
		Family:   r.Family,
		Dst_len:  r.DstLen,
		Table:    r.Table,
		Protocol: r.Protocol,
		Type:     r.RouteType,
		Scope:    unix.RT_SCOPE_UNIVERSE,
	}})
	for _, a := range r.Attrs {
		req.AddData(a)
	}
	return req.Serialize()
}

// Attr builds a flat attribute.
func Attr(t uint16, data []byte) *nl.RtAttr {
	return nl.NewRtAttr(int(t), data)
}

// U16 builds a native-endian u16 attribute.
func U16(t uint16, v uint16) *nl.RtAttr {
	return nl.NewRtAttr(int(t), nl.Uint16Attr(v))
}

// U32 builds a native-endian u32 attribute.
func U32(t uint16, v uint32) *nl.RtAttr {
	return nl.NewRtAttr(int(t), nl.Uint32Attr(v))
}

// Str builds a NUL-terminated string attribute.
func Str(t uint16, s string) *nl.RtAttr {
	return nl.NewRtAttr(int(t), nl.ZeroTerminated(s))
}

// IP builds an address attribute, 4 bytes for IPv4 and 16 for IPv6.
func IP(t uint16, s string) *nl.RtAttr {
	return nl.NewRtAttr(int(t), ipBytes(s))
}

// Via builds an RTA_VIA attribute.
func Via(s string) *nl.RtAttr {
	addr := ipBytes(s)
	family := uint16(unix.AF_INET)
	if len(addr) == net.IPv6len {
		family = unix.AF_INET6
	}
	b := make([]byte, 2+len(addr))
	nl.NativeEndian().PutUint16(b, family)
	copy(b[2:], addr)
	return nl.NewRtAttr(unix.RTA_VIA, b)
}

// Nested builds an attribute whose payload is the given children.
func Nested(t uint16, children ...nl.NetlinkRequestData) *nl.RtAttr {
	a := nl.NewRtAttr(int(t), nil)
	for _, c := range children {
		a.AddChild(c)
	}
	return a
}

// Hop is one member of an RTA_MULTIPATH block.
type Hop struct {
	IfIndex int
	// Weight is the advertised weight; 0 leaves rtnh_hops at 0 (weight 1).
	Weight uint8
	Attrs  []nl.NetlinkRequestData
}

// Multipath builds an RTA_MULTIPATH attribute.
func Multipath(hops ...Hop) *nl.RtAttr {
	var buf []byte
	for _, h := range hops {
		var rtnhHops uint8
		if h.Weight > 0 {
			rtnhHops = h.Weight - 1
		}
		rtnh := &nl.RtNexthop{
			RtNexthop: unix.RtNexthop{
				Hops:    rtnhHops,
				Ifindex: int32(h.IfIndex),
			},
			Children: h.Attrs,
		}
		buf = append(buf, rtnh.Serialize()...)
	}
	return nl.NewRtAttr(unix.RTA_MULTIPATH, buf)
}

// LabelStack encodes MPLS label stack entries with bottom-of-stack set on
// the last label.
func LabelStack(labels ...uint32) []byte {
	b := make([]byte, 4*len(labels))
	for i, l := range labels {
		entry := l << 12
		if i == len(labels)-1 {
			entry |= 0x100
		}
		binary.BigEndian.PutUint32(b[4*i:], entry)
	}
	return b
}

// EncapMPLS returns the attributes of an MPLS push encapsulation.
func EncapMPLS(labels ...uint32) []nl.NetlinkRequestData {
	return []nl.NetlinkRequestData{
		U16(unix.RTA_ENCAP_TYPE, unix.LWTUNNEL_ENCAP_MPLS),
		Nested(unix.RTA_ENCAP, Attr(1, LabelStack(labels...))),
	}
}

// EncapVXLAN returns the attributes of a VXLAN encapsulation.
func EncapVXLAN(vni uint32, rmac string) []nl.NetlinkRequestData {
	mac, _ := net.ParseMAC(rmac)
	return []nl.NetlinkRequestData{
		U16(unix.RTA_ENCAP_TYPE, 100),
		Nested(unix.RTA_ENCAP, U32(0, vni), Attr(1, mac)),
	}
}

// EncapSRv6 returns the attributes of an SRv6 steering encapsulation. An
// empty src omits the source address.
func EncapSRv6(vpnSID, src string) []nl.NetlinkRequestData {
	children := []nl.NetlinkRequestData{IP(1, vpnSID)}
	if src != "" {
		children = append(children, IP(2, src))
	}
	return []nl.NetlinkRequestData{
		U16(unix.RTA_ENCAP_TYPE, 101),
		Nested(unix.RTA_ENCAP, children...),
	}
}

// ipBytes keeps IPv6 notation 16 bytes wide, IPv4-mapped addresses
// included.
func ipBytes(s string) []byte {
	ip := net.ParseIP(s)
	if v4 := ip.To4(); v4 != nil && !strings.Contains(s, ":") {
		return v4
	}
	return ip.To16()
}
