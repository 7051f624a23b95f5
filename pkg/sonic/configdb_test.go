package sonic

import (
	"context"
	"testing"
	"time"

	"github.com/newtron-network/fpmsyncd/internal/testutil"
)

func TestConfigDBClient_SuppressFibPending(t *testing.T) {
	mr := testutil.StartRedis(t)
	c := NewConfigDBClient(mr.Addr(), ConfigDBNum)
	defer c.Close()
	ctx := context.Background()

	got, err := c.SuppressFibPending(ctx)
	if err != nil || got {
		t.Errorf("unset SuppressFibPending() = %v, %v; want false", got, err)
	}

	testutil.WriteSingleEntry(t, mr.Addr(), ConfigDBNum, "DEVICE_METADATA|localhost",
		map[string]string{"suppress-fib-pending": "enabled"})
	got, err = c.SuppressFibPending(ctx)
	if err != nil || !got {
		t.Errorf("enabled SuppressFibPending() = %v, %v; want true", got, err)
	}

	testutil.WriteSingleEntry(t, mr.Addr(), ConfigDBNum, "DEVICE_METADATA|localhost",
		map[string]string{"suppress-fib-pending": "disabled"})
	if got, _ := c.SuppressFibPending(ctx); got {
		t.Error("disabled SuppressFibPending() = true")
	}
}

func TestConfigDBClient_WarmRestartTimer(t *testing.T) {
	mr := testutil.StartRedis(t)
	c := NewConfigDBClient(mr.Addr(), ConfigDBNum)
	defer c.Close()
	ctx := context.Background()

	if d, err := c.WarmRestartTimer(ctx, "bgp"); err != nil || d != 0 {
		t.Errorf("unset WarmRestartTimer() = %v, %v", d, err)
	}

	testutil.WriteSingleEntry(t, mr.Addr(), ConfigDBNum, "WARM_RESTART|bgp", map[string]string{"bgp_timer": "180"})
	if d, err := c.WarmRestartTimer(ctx, "bgp"); err != nil || d != 180*time.Second {
		t.Errorf("WarmRestartTimer() = %v, %v; want 3m", d, err)
	}

	testutil.WriteSingleEntry(t, mr.Addr(), ConfigDBNum, "WARM_RESTART|bgp", map[string]string{"bgp_timer": "soon"})
	if _, err := c.WarmRestartTimer(ctx, "bgp"); err == nil {
		t.Error("WarmRestartTimer() accepted a non-numeric timer")
	}
}
