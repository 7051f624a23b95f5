package rtnl

import (
	"net"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// RouteDescriptor is the minimal identity of a route needed to tell the
// routing stack it has been offloaded.
type RouteDescriptor struct {
	Dst      *net.IPNet
	Protocol uint8
	Table    uint32
}

// Family returns AF_INET or AF_INET6 from the width of the destination
// mask. An IPv4-mapped IPv6 prefix stays AF_INET6.
func (d *RouteDescriptor) Family() uint8 {
	if _, bits := d.Dst.Mask.Size(); bits == 128 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// OffloadReply synthesizes an RTM_NEWROUTE carrying NLM_F_REQUEST and
// RTM_F_OFFLOAD for the described route.
func OffloadReply(d *RouteDescriptor) []byte {
	req := nl.NewNetlinkRequest(unix.RTM_NEWROUTE, 0)

	ones, _ := d.Dst.Mask.Size()
	msg := nl.NewRtMsg()
	msg.Family = d.Family()
	msg.Dst_len = uint8(ones)
	msg.Protocol = d.Protocol
	msg.Flags = unix.RTM_F_OFFLOAD
	if d.Table < 256 {
		msg.Table = uint8(d.Table)
	} else {
		msg.Table = unix.RT_TABLE_UNSPEC
	}
	req.AddData(msg)

	dst := d.Dst.IP.To16()
	if msg.Family == unix.AF_INET {
		dst = d.Dst.IP.To4()
	}
	req.AddData(nl.NewRtAttr(unix.RTA_DST, dst))
	req.AddData(nl.NewRtAttr(unix.RTA_TABLE, nl.Uint32Attr(d.Table)))

	return req.Serialize()
}
