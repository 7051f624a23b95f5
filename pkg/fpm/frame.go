// Package fpm implements the server side of the Forwarding Plane Manager
// transport: the routing stack connects over TCP and exchanges netlink
// messages wrapped in a 4-byte FPM header.
package fpm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Header field values.
const (
	ProtocolVersion uint8 = 1

	MsgTypeNone     uint8 = 0
	MsgTypeNetlink  uint8 = 1
	MsgTypeProtobuf uint8 = 2

	HeaderLen = 4
	// MaxFrameLen is the largest frame the 16-bit length can describe.
	MaxFrameLen = 0xffff

	DefaultPort = 2620
)

// Header is the FPM frame header. Length counts the header itself.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
}

// Serialize encodes h in network byte order.
func (h *Header) Serialize() []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = h.Version
	buf[1] = h.Type
	binary.BigEndian.PutUint16(buf[2:], h.Length)
	return buf
}

// DecodeFromBytes decodes and validates a header.
func (h *Header) DecodeFromBytes(data []byte) error {
	if len(data) < HeaderLen {
		return util.NewDecodeError("fpm header", fmt.Sprintf("%d bytes", len(data)))
	}
	h.Version = data[0]
	h.Type = data[1]
	h.Length = binary.BigEndian.Uint16(data[2:4])
	if h.Version != ProtocolVersion {
		return util.NewDecodeError("fpm header", fmt.Sprintf("version %d", h.Version))
	}
	if h.Length < HeaderLen {
		return util.NewDecodeError("fpm header", fmt.Sprintf("length %d", h.Length))
	}
	return nil
}

// Frame wraps a netlink message in an FPM header.
func Frame(msg []byte) ([]byte, error) {
	n := HeaderLen + len(msg)
	if n > MaxFrameLen {
		return nil, fmt.Errorf("fpm frame of %d bytes exceeds %d", n, MaxFrameLen)
	}
	h := Header{Version: ProtocolVersion, Type: MsgTypeNetlink, Length: uint16(n)}
	return append(h.Serialize(), msg...), nil
}

// ReadFrame reads one frame from r and returns its header and payload.
// A clean end of stream before a header returns io.EOF.
func ReadFrame(r io.Reader) (*Header, []byte, error) {
	buf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, err
	}
	h := &Header{}
	if err := h.DecodeFromBytes(buf); err != nil {
		return nil, nil, err
	}
	payload := make([]byte, int(h.Length)-HeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, fmt.Errorf("fpm payload: %w", err)
	}
	return h, payload, nil
}
