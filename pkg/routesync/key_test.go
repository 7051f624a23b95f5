package routesync

import (
	"net"
	"testing"
)

func TestRouteKey_RoundTrip(t *testing.T) {
	tests := []struct {
		vrf  string
		dst  string
		want string
	}{
		{"", "10.0.0.0/24", "10.0.0.0/24"},
		{"Vrf10", "10.0.0.0/24", "Vrf10:10.0.0.0/24"},
		{"Vrf10", "10.1.1.1/32", "Vrf10:10.1.1.1"},
		{"", "fc00:1::/64", "fc00:1::/64"},
		{"Vrf-red", "fc00:1::/64", "Vrf-red:fc00:1::/64"},
		{"Vrf10", "fc00::1/128", "Vrf10:fc00::1"},
		{"", "0.0.0.0/0", "0.0.0.0/0"},
		{"Vnet1", "10.0.0.0/8", "Vnet1:10.0.0.0/8"},
		{"", "::ffff:10.0.0.0/104", "::ffff:10.0.0.0/104"},
		{"Vrf10", "::ffff:10.0.0.1/128", "Vrf10:::ffff:10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, dst, err := net.ParseCIDR(tt.dst)
			if err != nil {
				t.Fatal(err)
			}
			k := NewRouteKey(tt.vrf, dst)
			if got := k.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
			parsed, err := ParseRouteKey(tt.want)
			if err != nil {
				t.Fatalf("ParseRouteKey(%q) error = %v", tt.want, err)
			}
			if parsed != k {
				t.Errorf("ParseRouteKey(%q) = %+v, want %+v", tt.want, parsed, k)
			}
		})
	}
}

func TestParseRouteKey_Errors(t *testing.T) {
	for _, s := range []string{"", "Vrf10", "Vrf10:not-a-prefix", "10.0.0.0/33", "garbage"} {
		if _, err := ParseRouteKey(s); err == nil {
			t.Errorf("ParseRouteKey(%q) succeeded", s)
		}
	}
}

func TestSIDKey_RoundTrip(t *testing.T) {
	k := SIDKey{BlockLen: 32, NodeLen: 16, FuncLen: 16, ArgLen: 0, SID: net.ParseIP("fc00:0:1:e000::")}
	s := k.String()
	if s != "32:16:16:0:fc00:0:1:e000::" {
		t.Fatalf("String() = %q", s)
	}
	parsed, err := ParseSIDKey(s)
	if err != nil {
		t.Fatalf("ParseSIDKey: %v", err)
	}
	if parsed.String() != s {
		t.Errorf("round trip = %q, want %q", parsed.String(), s)
	}

	for _, bad := range []string{"32:16:16:fc00::", "300:16:16:0:fc00::", "32:16:16:0:10.0.0.1", "32:16:16:0:nope"} {
		if _, err := ParseSIDKey(bad); err == nil {
			t.Errorf("ParseSIDKey(%q) succeeded", bad)
		}
	}
}

func TestProtocolName(t *testing.T) {
	tests := []struct {
		num  uint8
		name string
	}{
		{2, "kernel"},
		{4, "static"},
		{186, "bgp"},
		{188, "ospf"},
		{200, "200"},
	}
	for _, tt := range tests {
		if got := ProtocolName(tt.num); got != tt.name {
			t.Errorf("ProtocolName(%d) = %q, want %q", tt.num, got, tt.name)
		}
		n, err := ProtocolNumber(tt.name)
		if err != nil || n != tt.num {
			t.Errorf("ProtocolNumber(%q) = %d, %v; want %d", tt.name, n, err, tt.num)
		}
	}
	if _, err := ProtocolNumber("frobnicate"); err == nil {
		t.Error("ProtocolNumber accepted an unknown name")
	}
}

func TestActionName(t *testing.T) {
	for code := uint32(1); code <= 21; code++ {
		name, ok := ActionName(code)
		if !ok {
			t.Errorf("ActionName(%d) missing", code)
			continue
		}
		if back, ok := ActionCode(name); !ok || back != code {
			t.Errorf("ActionCode(%q) = %d, want %d", name, back, code)
		}
	}
	if _, ok := ActionName(0); ok {
		t.Error("unspecified action has a name")
	}
}
