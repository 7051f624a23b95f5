package util

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// FormatPrefix renders ip/maskLen the way APPL_DB keys expect it: the mask
// is omitted for host routes (/32 for IPv4, /128 for IPv6). The family
// comes from v6, not from the address, so an IPv4-mapped IPv6 prefix keeps
// its IPv6 form.
func FormatPrefix(ip net.IP, maskLen int, v6 bool) string {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return fmt.Sprintf("%s/%d", ip, maskLen)
	}
	if v6 {
		addr = netip.AddrFrom16(addr.As16())
	} else {
		addr = addr.Unmap()
	}
	if maskLen == addr.BitLen() {
		return addr.String()
	}
	return fmt.Sprintf("%s/%d", addr, maskLen)
}

// ParsePrefix parses "address[/masklen]". A bare address is a host prefix.
// The result is 4 bytes wide for IPv4 and 16 for IPv6, including
// IPv4-mapped addresses.
func ParsePrefix(s string) (*net.IPNet, error) {
	var p netip.Prefix
	var err error
	if strings.Contains(s, "/") {
		p, err = netip.ParsePrefix(s)
	} else {
		var addr netip.Addr
		if addr, err = netip.ParseAddr(s); err == nil {
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
	}
	if err != nil || p.Addr().Zone() != "" {
		return nil, fmt.Errorf("invalid prefix: %s", s)
	}
	p = p.Masked()
	return &net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
	}, nil
}

// ZeroAddr returns the unspecified address for an address family width.
func ZeroAddr(v6 bool) string {
	if v6 {
		return "::"
	}
	return "0.0.0.0"
}

// IsZeroAddr reports whether s is the unspecified IPv4 or IPv6 address.
func IsZeroAddr(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.IsUnspecified()
}

// IsZeroMAC reports whether every byte of mac is zero. An empty address
// counts as zero.
func IsZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}
