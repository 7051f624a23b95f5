package sonic

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// StateDBClient records warm-restart progress in STATE_DB.
type StateDBClient struct {
	client
}

// NewStateDBClient creates a new STATE_DB client.
func NewStateDBClient(addr string, db int) *StateDBClient {
	return &StateDBClient{client: newClient(addr, db)}
}

// setWarmStateScript writes the state and bumps restore_count when the
// restart begins, in one step.
var setWarmStateScript = redis.NewScript(`
local key = KEYS[1]
redis.call("HSET", key, "state", ARGV[1])
if ARGV[1] == "initialized" then
	redis.call("HINCRBY", key, "restore_count", 1)
end
return 1
`)

// SetWarmRestartState writes WARM_RESTART_TABLE|<app> state.
func (c *StateDBClient) SetWarmRestartState(ctx context.Context, app, state string) error {
	key := ConfigKey("WARM_RESTART_TABLE", app)
	if err := setWarmStateScript.Run(ctx, c.rdb, []string{key}, state).Err(); err != nil {
		return fmt.Errorf("setting %s state %s: %w", key, state, err)
	}
	return nil
}

// WarmRestartState reads WARM_RESTART_TABLE|<app> state; "" when unset.
func (c *StateDBClient) WarmRestartState(ctx context.Context, app string) (string, error) {
	key := ConfigKey("WARM_RESTART_TABLE", app)
	v, err := c.rdb.HGet(ctx, key, "state").Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s state: %w", key, err)
	}
	return v, nil
}

// WarmRestartEnabled reports whether warm restart is enabled for app,
// either directly or system-wide.
func (c *StateDBClient) WarmRestartEnabled(ctx context.Context, app string) (bool, error) {
	for _, k := range []string{app, "system"} {
		key := ConfigKey("WARM_RESTART_ENABLE_TABLE", k)
		v, err := c.rdb.HGet(ctx, key, "enable").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", key, err)
		}
		if v == "true" {
			return true, nil
		}
	}
	return false, nil
}
