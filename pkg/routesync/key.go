package routesync

import (
	"fmt"
	"net"
	"strings"

	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Master device naming conventions.
const (
	VRFPrefix     = "Vrf"
	MgmtVRFPrefix = "mgmt"
	VNETPrefix    = "Vnet"
	// VXLANIfPrefix marks the bridge device of a VNET tunnel.
	VXLANIfPrefix = "Brvxlan"
)

// RouteKey is "[vrf:]address[/masklen]". The mask is omitted for host
// routes.
type RouteKey struct {
	VRF    string
	Prefix string
}

// NewRouteKey builds the key of dst in vrf ("" is the default VRF). The
// mask width decides the address family.
func NewRouteKey(vrf string, dst *net.IPNet) RouteKey {
	ones, bits := dst.Mask.Size()
	return RouteKey{VRF: vrf, Prefix: util.FormatPrefix(dst.IP, ones, bits == 128)}
}

func (k RouteKey) String() string {
	if k.VRF == "" {
		return k.Prefix
	}
	return k.VRF + sonic.ApplSeparator + k.Prefix
}

// IPNet parses the prefix.
func (k RouteKey) IPNet() (*net.IPNet, error) {
	return util.ParsePrefix(k.Prefix)
}

// ParseRouteKey splits a key written by this package. Only VRF and VNET
// names can qualify a key; anything else is read as a bare prefix.
func ParseRouteKey(s string) (RouteKey, error) {
	var k RouteKey
	if strings.HasPrefix(s, VRFPrefix) || strings.HasPrefix(s, VNETPrefix) {
		vrf, prefix, ok := strings.Cut(s, sonic.ApplSeparator)
		if !ok {
			return RouteKey{}, fmt.Errorf("route key %q: missing prefix", s)
		}
		k.VRF, s = vrf, prefix
	}
	if _, err := util.ParsePrefix(s); err != nil {
		return RouteKey{}, fmt.Errorf("route key: %w", err)
	}
	k.Prefix = s
	return k, nil
}

// Default SRv6 locator format lengths.
const (
	DefaultBlockLen uint8 = 32
	DefaultNodeLen  uint8 = 16
	DefaultFuncLen  uint8 = 16
	DefaultArgLen   uint8 = 0
)

// SIDKey is "block:node:func:arg:sid".
type SIDKey struct {
	BlockLen uint8
	NodeLen  uint8
	FuncLen  uint8
	ArgLen   uint8
	SID      net.IP
}

func (k SIDKey) String() string {
	return fmt.Sprintf("%d:%d:%d:%d:%s", k.BlockLen, k.NodeLen, k.FuncLen, k.ArgLen, k.SID)
}

// ParseSIDKey is the inverse of SIDKey.String.
func ParseSIDKey(s string) (SIDKey, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 {
		return SIDKey{}, fmt.Errorf("sid key %q: want block:node:func:arg:sid", s)
	}
	var lens [4]uint8
	for i := range lens {
		v, err := util.ParseUint8(parts[i])
		if err != nil {
			return SIDKey{}, fmt.Errorf("sid key %q: %w", s, err)
		}
		lens[i] = v
	}
	sid := net.ParseIP(parts[4])
	if sid == nil || sid.To4() != nil {
		return SIDKey{}, fmt.Errorf("sid key %q: invalid IPv6 sid", s)
	}
	return SIDKey{BlockLen: lens[0], NodeLen: lens[1], FuncLen: lens[2], ArgLen: lens[3], SID: sid}, nil
}
