package rtnl

import (
	"fmt"

	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// RouteMsg is a decoded route or local SID message: the netlink header
// fields, the fixed rtmsg header, and the top-level attributes.
type RouteMsg struct {
	Type      uint16 // nlmsg_type
	Flags     uint16 // nlmsg_flags
	Family    uint8
	DstLen    uint8
	SrcLen    uint8
	Tos       uint8
	Table     uint8
	Protocol  uint8
	Scope     uint8
	RouteType uint8
	RtFlags   uint32

	Attrs *Attrs
}

// IsRouteMsg reports whether t is a route add/delete.
func IsRouteMsg(t uint16) bool {
	return t == unix.RTM_NEWROUTE || t == unix.RTM_DELROUTE
}

// IsLocalSIDMsg reports whether t is an SRv6 local SID add/delete.
func IsLocalSIDMsg(t uint16) bool {
	return t == MsgNewSRv6LocalSID || t == MsgDelSRv6LocalSID
}

// IsDelete reports whether the message withdraws state.
func (m *RouteMsg) IsDelete() bool {
	return m.Type == unix.RTM_DELROUTE || m.Type == MsgDelSRv6LocalSID
}

// TableID returns RTA_TABLE when present, else the rtmsg table field.
func (m *RouteMsg) TableID() uint32 {
	if t, ok := m.Attrs.Uint32(unix.RTA_TABLE); ok {
		return t
	}
	return uint32(m.Table)
}

// SplitMessages splits a buffer holding one or more netlink messages.
// A header whose length runs past the buffer ends the split with an error;
// complete messages before it are still returned.
func SplitMessages(b []byte) ([][]byte, error) {
	var msgs [][]byte
	for len(b) >= unix.SizeofNlMsghdr {
		l := int(nlenc.Uint32(b[0:4]))
		if l < unix.SizeofNlMsghdr || l > len(b) {
			return msgs, util.NewDecodeError("netlink header",
				fmt.Sprintf("length %d with %d bytes remaining", l, len(b)))
		}
		msgs = append(msgs, b[:l:l])
		next := align4(l)
		if next >= len(b) {
			return msgs, nil
		}
		b = b[next:]
	}
	if len(b) > 0 {
		return msgs, util.NewDecodeError("netlink header", fmt.Sprintf("%d trailing bytes", len(b)))
	}
	return msgs, nil
}

// ParseMessage decodes a single netlink message. Message types other than
// route and local SID messages return util.ErrUnsupported.
func ParseMessage(b []byte) (*RouteMsg, error) {
	if len(b) < unix.SizeofNlMsghdr {
		return nil, util.NewDecodeError("netlink header", fmt.Sprintf("%d bytes", len(b)))
	}
	l := int(nlenc.Uint32(b[0:4]))
	if l < unix.SizeofNlMsghdr || l > len(b) {
		return nil, util.NewDecodeError("netlink header", fmt.Sprintf("length %d exceeds %d bytes", l, len(b)))
	}
	m := &RouteMsg{
		Type:  nlenc.Uint16(b[4:6]),
		Flags: nlenc.Uint16(b[6:8]),
	}

	var attrMax int
	switch {
	case IsRouteMsg(m.Type):
		attrMax = RouteAttrMax
	case IsLocalSIDMsg(m.Type):
		attrMax = LocalSIDAttrMax
	default:
		return nil, fmt.Errorf("message type %d: %w", m.Type, util.ErrUnsupported)
	}

	body := b[unix.SizeofNlMsghdr:l]
	if len(body) < unix.SizeofRtMsg {
		return nil, util.NewDecodeError("rtmsg", fmt.Sprintf("%d bytes, need %d", len(body), unix.SizeofRtMsg))
	}
	m.Family = body[0]
	m.DstLen = body[1]
	m.SrcLen = body[2]
	m.Tos = body[3]
	m.Table = body[4]
	m.Protocol = body[5]
	m.Scope = body[6]
	m.RouteType = body[7]
	m.RtFlags = nlenc.Uint32(body[8:12])
	m.Attrs = ParseAttrs(body[unix.SizeofRtMsg:], attrMax)
	return m, nil
}
