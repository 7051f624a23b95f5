// Package rtnl decodes and synthesizes the rtnetlink route messages carried
// over the FPM channel.
package rtnl

import (
	"encoding/binary"
	"net"

	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

const (
	attrHeaderLen = unix.SizeofRtAttr
	attrTypeMask  = 0x3fff // strips NLA_F_NESTED and NLA_F_NET_BYTEORDER
)

func align4(n int) int {
	return (n + 3) &^ 3
}

// Attrs is one decoded level of a type-length-value attribute buffer,
// indexed by attribute type. Payloads are views into the original buffer.
type Attrs struct {
	vals      [][]byte
	truncated bool
}

// ParseAttrs decodes a single attribute level. Types above maxType are skipped.
// A length field that would run past the end of b stops decoding; siblings
// already decoded remain available and Truncated reports true.
func ParseAttrs(b []byte, maxType int) *Attrs {
	a := &Attrs{}
	if maxType >= 0 {
		a.vals = make([][]byte, maxType+1)
	}
	for len(b) >= attrHeaderLen {
		l := int(nlenc.Uint16(b[0:2]))
		t := int(nlenc.Uint16(b[2:4]) & attrTypeMask)
		if l < attrHeaderLen || l > len(b) {
			a.truncated = true
			return a
		}
		if t <= maxType {
			// Full slice expression keeps a zero-length payload non-nil.
			a.vals[t] = b[attrHeaderLen:l:l]
		}
		next := align4(l)
		if next >= len(b) {
			return a
		}
		b = b[next:]
	}
	if len(b) > 0 {
		a.truncated = true
	}
	return a
}

// Truncated reports whether decoding stopped on a malformed length.
func (a *Attrs) Truncated() bool {
	return a != nil && a.truncated
}

// Has reports whether attribute t was present.
func (a *Attrs) Has(t uint16) bool {
	_, ok := a.Bytes(t)
	return ok
}

// Bytes returns the raw payload of attribute t.
func (a *Attrs) Bytes(t uint16) ([]byte, bool) {
	if a == nil || int(t) >= len(a.vals) || a.vals[t] == nil {
		return nil, false
	}
	return a.vals[t], true
}

// Uint8 returns attribute t as a u8. A payload of the wrong size is absent.
func (a *Attrs) Uint8(t uint16) (uint8, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 1 {
		return 0, false
	}
	return b[0], true
}

// Uint16 returns attribute t as a native-endian u16.
func (a *Attrs) Uint16(t uint16) (uint16, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 2 {
		return 0, false
	}
	return nlenc.Uint16(b[:2]), true
}

// Uint32 returns attribute t as a native-endian u32.
func (a *Attrs) Uint32(t uint16) (uint32, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 4 {
		return 0, false
	}
	return nlenc.Uint32(b[:4]), true
}

// String returns attribute t as a string with trailing NULs removed.
func (a *Attrs) String(t uint16) (string, bool) {
	b, ok := a.Bytes(t)
	if !ok {
		return "", false
	}
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b), true
}

// Addr returns attribute t as an IPv4 or IPv6 address. Payloads that are
// neither 4 nor 16 bytes long are treated as absent.
func (a *Attrs) Addr(t uint16) (net.IP, bool) {
	b, ok := a.Bytes(t)
	if !ok {
		return nil, false
	}
	return bytesToIP(b)
}

// MAC returns attribute t as a 6-byte hardware address.
func (a *Attrs) MAC(t uint16) (net.HardwareAddr, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 6 {
		return nil, false
	}
	mac := make(net.HardwareAddr, 6)
	copy(mac, b[:6])
	return mac, true
}

// Nested decodes the payload of attribute t as another attribute level
// with its own bound.
func (a *Attrs) Nested(t uint16, maxType int) (*Attrs, bool) {
	b, ok := a.Bytes(t)
	if !ok {
		return nil, false
	}
	return ParseAttrs(b, maxType), true
}

// Via decodes an RTA_VIA payload (u16 family followed by the address).
func (a *Attrs) Via(t uint16) (net.IP, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 2 {
		return nil, false
	}
	return bytesToIP(b[2:])
}

// Labels decodes an MPLS label stack: a sequence of 4-byte big-endian label
// stack entries, label value in the top 20 bits. Decoding stops at the
// bottom-of-stack entry.
func (a *Attrs) Labels(t uint16) ([]uint32, bool) {
	b, ok := a.Bytes(t)
	if !ok || len(b) < 4 {
		return nil, false
	}
	var labels []uint32
	for len(b) >= 4 {
		entry := binary.BigEndian.Uint32(b[:4])
		labels = append(labels, entry>>mplsLabelShift)
		if entry&mplsBottomOfStack != 0 {
			break
		}
		b = b[4:]
	}
	return labels, true
}

const (
	mplsLabelShift    = 12
	mplsBottomOfStack = 0x100
)

func bytesToIP(b []byte) (net.IP, bool) {
	switch len(b) {
	case net.IPv4len:
		return net.IPv4(b[0], b[1], b[2], b[3]).To4(), true
	case net.IPv6len:
		ip := make(net.IP, net.IPv6len)
		copy(ip, b)
		return ip, true
	}
	return nil, false
}
