package sonic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// ConfigDBClient reads the CONFIG_DB knobs the route syncer honours.
type ConfigDBClient struct {
	client
}

// NewConfigDBClient creates a new CONFIG_DB client.
func NewConfigDBClient(addr string, db int) *ConfigDBClient {
	return &ConfigDBClient{client: newClient(addr, db)}
}

// hget returns a field value, or "" when the key or field does not exist.
func (c *ConfigDBClient) hget(ctx context.Context, table, key, field string) (string, error) {
	v, err := c.rdb.HGet(ctx, ConfigKey(table, key), field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s %s: %w", ConfigKey(table, key), field, err)
	}
	return v, nil
}

// SuppressFibPending reports whether DEVICE_METADATA|localhost has
// suppress-fib-pending=enabled. When set, offload acknowledgments wait for
// the route programming response.
func (c *ConfigDBClient) SuppressFibPending(ctx context.Context) (bool, error) {
	v, err := c.hget(ctx, "DEVICE_METADATA", "localhost", "suppress-fib-pending")
	if err != nil {
		return false, err
	}
	return v == "enabled", nil
}

// WarmRestartTimer returns WARM_RESTART|<app> <app>_timer. Zero means unset.
func (c *ConfigDBClient) WarmRestartTimer(ctx context.Context, app string) (time.Duration, error) {
	v, err := c.hget(ctx, "WARM_RESTART", app, app+"_timer")
	if err != nil || v == "" {
		return 0, err
	}
	secs, err := util.ParseUint32(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s_timer %q: %w", app, v, err)
	}
	return time.Duration(secs) * time.Second, nil
}
