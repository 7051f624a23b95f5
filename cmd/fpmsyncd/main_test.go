package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/newtron-network/fpmsyncd/pkg/config"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
)

func TestApplyFlags(t *testing.T) {
	cfg = config.Default()
	defer func() { cfg = nil }()

	if err := rootCmd.ParseFlags([]string{"--fpm-listen", "0.0.0.0:2620", "--warm-restart", "--log-level=debug"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	applyFlags(rootCmd)

	if cfg.FPM.Listen != "0.0.0.0:2620" {
		t.Errorf("FPM.Listen = %q", cfg.FPM.Listen)
	}
	if !cfg.WarmRestart.Enabled {
		t.Error("WarmRestart.Enabled not set")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Redis.Addr != config.Default().Redis.Addr {
		t.Errorf("unset --redis changed Redis.Addr to %q", cfg.Redis.Addr)
	}
}

func TestKnownTable(t *testing.T) {
	for _, table := range sonic.Tables {
		if !knownTable(table) {
			t.Errorf("knownTable(%q) = false", table)
		}
	}
	if knownTable("PORT_TABLE") {
		t.Error("knownTable(PORT_TABLE) = true")
	}
}

func TestPrintEntries(t *testing.T) {
	entries := map[string]map[string]string{
		"10.1.0.0/24": {"nexthop": "10.0.0.1", "ifname": "Ethernet0", "protocol": "bgp"},
		"10.0.0.0/24": {"blackhole": "true", "protocol": "static"},
	}
	var buf bytes.Buffer
	if err := printEntries(&buf, entries, "  "); err != nil {
		t.Fatalf("printEntries: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for _, l := range lines {
		if !strings.HasPrefix(l, "  ") {
			t.Errorf("line %q missing prefix", l)
		}
	}
	out := buf.String()
	if strings.Index(out, "10.0.0.0/24") > strings.Index(out, "10.1.0.0/24") {
		t.Error("keys not sorted")
	}
	if !strings.Contains(out, "blackhole=true protocol=static") {
		t.Errorf("fields column missing:\n%s", out)
	}
	if !strings.HasSuffix(out, "  2 entries\n") {
		t.Errorf("missing entry count:\n%s", out)
	}
}
