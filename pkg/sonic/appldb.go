package sonic

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Store is the record writer the route syncer and warm-restart coordinator
// write through.
type Store interface {
	// Apply writes all changes or none.
	Apply(ctx context.Context, changes ...TableChange) error
	// Entries returns every key of table with its fields.
	Entries(ctx context.Context, table string) (map[string]map[string]string, error)
}

// ApplDBClient writes route records to APPL_DB as a producer: each change
// is staged in "_<TABLE>:<key>", announced in <TABLE>_KEY_SET and signalled
// on <TABLE>_CHANNEL@<db>. The consumer (orchagent) moves staged fields into
// the live "<TABLE>:<key>" hash, which is what Entries reads.
type ApplDBClient struct {
	client
}

// NewApplDBClient creates a new APPL_DB client.
func NewApplDBClient(addr string, db int) *ApplDBClient {
	return &ApplDBClient{client: newClient(addr, db)}
}

// produceScript stages one change. The key always joins the DEL_SET so the
// consumer clears the live hash before copying the staged fields; a set
// therefore replaces the entry instead of merging into it. The channel is
// signalled only when the key was not already pending.
//
// KEYS: channel, key set, staging hash, del set.
// ARGV: signal, key, op, field/value pairs.
var produceScript = redis.NewScript(`
local added = redis.call("SADD", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[4], ARGV[2])
redis.call("DEL", KEYS[3])
if ARGV[3] == "SET" then
	for i = 4, #ARGV, 2 do
		redis.call("HSET", KEYS[3], ARGV[i], ARGV[i + 1])
	end
end
if added > 0 then
	redis.call("PUBLISH", KEYS[1], ARGV[1])
end
return added
`)

// Apply stages changes atomically in one MULTI/EXEC. An empty field set
// writes the NULL sentinel.
func (c *ApplDBClient) Apply(ctx context.Context, changes ...TableChange) error {
	if len(changes) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for _, change := range changes {
		keys := []string{
			ChannelName(change.Table, c.db),
			KeySetName(change.Table),
			StagingKey(change.Table, change.Key),
			DelSetName(change.Table),
		}
		args := []interface{}{producerSignal, change.Key, change.Op()}
		switch {
		case change.IsDelete():
		case len(change.Fields) == 0:
			args = append(args, "NULL", "NULL")
		default:
			args = append(args, hsetArgs(change.Fields)...)
		}
		produceScript.Eval(ctx, pipe, keys, args...)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	return nil
}

// Entries reads every entry of table. Keys are returned without the table
// prefix.
func (c *ApplDBClient) Entries(ctx context.Context, table string) (map[string]map[string]string, error) {
	keys, err := scanKeys(ctx, c.rdb, table+ApplSeparator+"*", 100)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", table, err)
	}

	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.StringStringMapCmd, len(keys))
	for _, k := range keys {
		if _, entry, ok := splitApplKey(k); ok {
			cmds[entry] = pipe.HGetAll(ctx, k)
		}
	}
	if len(cmds) == 0 {
		return map[string]map[string]string{}, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}

	entries := make(map[string]map[string]string, len(cmds))
	for entry, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", ApplKey(table, entry), err)
		}
		// A key can vanish between SCAN and HGETALL.
		if len(vals) > 0 {
			entries[entry] = vals
		}
	}
	return entries, nil
}
