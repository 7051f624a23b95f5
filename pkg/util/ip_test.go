package util

import (
	"net"
	"testing"
)

func TestFormatPrefix(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		maskLen int
		v6      bool
		want    string
	}{
		{"ipv4 network", "10.0.0.0", 24, false, "10.0.0.0/24"},
		{"ipv4 host", "10.1.1.1", 32, false, "10.1.1.1"},
		{"ipv4 default", "0.0.0.0", 0, false, "0.0.0.0/0"},
		{"ipv6 network", "fc00:1::", 64, true, "fc00:1::/64"},
		{"ipv6 host", "fc00::1", 128, true, "fc00::1"},
		{"ipv6 default", "::", 0, true, "::/0"},
		{"ipv4-mapped network", "::ffff:10.0.0.0", 104, true, "::ffff:10.0.0.0/104"},
		{"ipv4-mapped host", "::ffff:10.0.0.1", 128, true, "::ffff:10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPrefix(net.ParseIP(tt.ip), tt.maskLen, tt.v6)
			if got != tt.want {
				t.Errorf("FormatPrefix(%s, %d) = %q, want %q", tt.ip, tt.maskLen, got, tt.want)
			}
		})
	}
}

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		in       string
		wantIP   string
		wantOnes int
		wantErr  bool
	}{
		{"10.0.0.0/24", "10.0.0.0", 24, false},
		{"10.1.1.1", "10.1.1.1", 32, false},
		{"fc00::1", "fc00::1", 128, false},
		{"fc00:1::/64", "fc00:1::", 64, false},
		{"10.0.0.5/24", "10.0.0.0", 24, false},
		{"::ffff:10.0.0.0/104", "10.0.0.0", 104, false},
		{"not-an-ip", "", 0, true},
		{"10.0.0.0/99", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrefix(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrefix(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			ones, bits := got.Mask.Size()
			if len(got.IP)*8 != bits {
				t.Errorf("ParsePrefix(%q) has a %d-byte address with a /%d mask", tt.in, len(got.IP), bits)
			}
			if got.IP.String() != tt.wantIP || ones != tt.wantOnes {
				t.Errorf("ParsePrefix(%q) = %s/%d, want %s/%d", tt.in, got.IP, ones, tt.wantIP, tt.wantOnes)
			}
		})
	}
}

func TestPrefixRoundTrip(t *testing.T) {
	for _, s := range []string{"10.0.0.0/24", "10.1.1.1", "fc00:1::/64", "fc00::1", "0.0.0.0/0", "::ffff:10.0.0.0/104", "::ffff:10.0.0.1"} {
		p, err := ParsePrefix(s)
		if err != nil {
			t.Fatalf("ParsePrefix(%q): %v", s, err)
		}
		ones, bits := p.Mask.Size()
		if got := FormatPrefix(p.IP, ones, bits == 128); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestZeroAddr(t *testing.T) {
	if ZeroAddr(false) != "0.0.0.0" {
		t.Errorf("ZeroAddr(false) = %q", ZeroAddr(false))
	}
	if ZeroAddr(true) != "::" {
		t.Errorf("ZeroAddr(true) = %q", ZeroAddr(true))
	}
	if !IsZeroAddr("::") || !IsZeroAddr("0.0.0.0") {
		t.Error("IsZeroAddr should accept unspecified addresses")
	}
	if IsZeroAddr("10.1.1.1") {
		t.Error("IsZeroAddr(10.1.1.1) should be false")
	}
}

func TestIsZeroMAC(t *testing.T) {
	tests := []struct {
		mac  net.HardwareAddr
		want bool
	}{
		{net.HardwareAddr{0, 0, 0, 0, 0, 0}, true},
		{nil, true},
		{net.HardwareAddr{0x52, 0x54, 0, 0x12, 0x34, 0x56}, false},
		{net.HardwareAddr{0, 0, 0, 0, 0, 1}, false},
	}
	for _, tt := range tests {
		if got := IsZeroMAC(tt.mac); got != tt.want {
			t.Errorf("IsZeroMAC(%v) = %v, want %v", tt.mac, got, tt.want)
		}
	}
}
