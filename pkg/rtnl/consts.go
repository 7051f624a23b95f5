package rtnl

import "golang.org/x/sys/unix"

// Message types the SONiC dplane plugin sends beyond the kernel RTM_* range.
const (
	MsgNewSRv6LocalSID uint16 = 1000
	MsgDelSRv6LocalSID uint16 = 1001
)

// RouteAttrMax bounds the top-level route attribute table.
const RouteAttrMax = unix.RTA_MAX

// Next-hop encapsulation types carried in RTA_ENCAP_TYPE. MPLS uses the
// kernel lightweight-tunnel value; VXLAN and SRv6 are dplane extensions.
const (
	EncapMPLS      uint16 = unix.LWTUNNEL_ENCAP_MPLS
	EncapVXLAN     uint16 = 100
	EncapSRv6Route uint16 = 101
)

// Attributes nested in an MPLS encapsulation.
const (
	MPLSTunnelDst uint16 = 1
	MPLSTunnelTTL uint16 = 2

	mplsTunnelMax = 2
)

// Attributes nested in a VXLAN encapsulation. The VNI uses type 0.
const (
	VXLANVNI  uint16 = 0
	VXLANRMAC uint16 = 1

	vxlanMax = 1
)

// Attributes nested in an SRv6 steering encapsulation.
const (
	SRv6EncapVPNSID  uint16 = 1
	SRv6EncapSrcAddr uint16 = 2

	srv6EncapMax = 2
)

// Top-level attributes of an SRv6 local SID message.
const (
	LocalSIDValue        uint16 = 1
	LocalSIDFormat       uint16 = 2
	LocalSIDAction       uint16 = 3
	LocalSIDVRFName      uint16 = 4
	LocalSIDNH6          uint16 = 5
	LocalSIDNH4          uint16 = 6
	LocalSIDIIF          uint16 = 7
	LocalSIDOIF          uint16 = 8
	LocalSIDBPF          uint16 = 9
	LocalSIDSIDList      uint16 = 10
	LocalSIDEncapSrcAddr uint16 = 11

	LocalSIDAttrMax = 11
)

// Attributes nested in LocalSIDFormat.
const (
	FormatBlockLen uint16 = 1
	FormatNodeLen  uint16 = 2
	FormatFuncLen  uint16 = 3
	FormatArgLen   uint16 = 4

	FormatMax = 4
)

// Local SID behaviors as encoded in LocalSIDAction.
const (
	ActionUnspec      uint32 = 0
	ActionEnd         uint32 = 1
	ActionEndX        uint32 = 2
	ActionEndT        uint32 = 3
	ActionEndDX2      uint32 = 4
	ActionEndDX6      uint32 = 5
	ActionEndDX4      uint32 = 6
	ActionEndDT6      uint32 = 7
	ActionEndDT4      uint32 = 8
	ActionEndDT46     uint32 = 9
	ActionB6Encaps    uint32 = 10
	ActionB6EncapsRed uint32 = 11
	ActionB6Insert    uint32 = 12
	ActionB6InsertRed uint32 = 13
	ActionUN          uint32 = 14
	ActionUA          uint32 = 15
	ActionUDX2        uint32 = 16
	ActionUDX6        uint32 = 17
	ActionUDX4        uint32 = 18
	ActionUDT6        uint32 = 19
	ActionUDT4        uint32 = 20
	ActionUDT46       uint32 = 21
)

// NestedMax returns the attribute bound for an encapsulation payload of the
// given type, or -1 for types without a known layout.
func NestedMax(encapType uint16) int {
	switch encapType {
	case EncapMPLS:
		return mplsTunnelMax
	case EncapVXLAN:
		return vxlanMax
	case EncapSRv6Route:
		return srv6EncapMax
	}
	return -1
}
