package routesync

import (
	"strconv"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// protocolNames follows the kernel's rt_protos table.
var protocolNames = map[uint8]string{
	0:   "unspec",
	1:   "redirect",
	2:   "kernel",
	3:   "boot",
	4:   "static",
	8:   "gated",
	9:   "ra",
	10:  "mrt",
	11:  "zebra",
	12:  "bird",
	13:  "dnrouted",
	14:  "xorp",
	15:  "ntk",
	16:  "dhcp",
	17:  "mrouted",
	18:  "keepalived",
	42:  "babel",
	99:  "openr",
	186: "bgp",
	187: "isis",
	188: "ospf",
	189: "rip",
	192: "eigrp",
}

var protocolNumbers = func() map[string]uint8 {
	m := make(map[string]uint8, len(protocolNames))
	for n, s := range protocolNames {
		m[s] = n
	}
	return m
}()

// ProtocolName returns the rt_protos name of a route protocol, or its
// decimal value when the number has no name.
func ProtocolName(p uint8) string {
	if s, ok := protocolNames[p]; ok {
		return s
	}
	return strconv.Itoa(int(p))
}

// ProtocolNumber is the inverse of ProtocolName.
func ProtocolNumber(name string) (uint8, error) {
	if n, ok := protocolNumbers[name]; ok {
		return n, nil
	}
	return util.ParseUint8(name)
}
