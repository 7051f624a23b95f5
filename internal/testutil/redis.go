package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// StartRedis starts an in-process redis server stopped at test cleanup.
func StartRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// SeedRedis loads hashes into a DB from JSON of the form
// {"redis-key": {"field": "value"}}.
func SeedRedis(t *testing.T, addr string, db int, seed string) {
	t.Helper()
	var entries map[string]map[string]string
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		t.Fatalf("parsing seed: %v", err)
	}
	client := oneShot(addr, db)
	defer client.Close()
	for redisKey, fields := range entries {
		writeHash(t, client, redisKey, fields)
	}
}

// oneShot returns a client the caller closes. Helpers are polled from
// Eventually, so clients are not held until cleanup.
func oneShot(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: db})
}

// WriteSingleEntry writes one hash.
func WriteSingleEntry(t *testing.T, addr string, db int, redisKey string, fields map[string]string) {
	t.Helper()
	client := oneShot(addr, db)
	defer client.Close()
	writeHash(t, client, redisKey, fields)
}

func writeHash(t *testing.T, client *redis.Client, redisKey string, fields map[string]string) {
	t.Helper()
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := client.HSet(context.Background(), redisKey, args...).Err(); err != nil {
		t.Fatalf("writing %s: %v", redisKey, err)
	}
}

// ReadEntry returns a hash's fields; a missing key reads as empty.
func ReadEntry(t *testing.T, addr string, db int, redisKey string) map[string]string {
	t.Helper()
	client := oneShot(addr, db)
	defer client.Close()
	vals, err := client.HGetAll(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", redisKey, err)
	}
	return vals
}

// EntryExists reports whether a key exists.
func EntryExists(t *testing.T, addr string, db int, redisKey string) bool {
	t.Helper()
	client := oneShot(addr, db)
	defer client.Close()
	n, err := client.Exists(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("checking %s: %v", redisKey, err)
	}
	return n > 0
}

// KeyCount returns the number of keys matching pattern.
func KeyCount(t *testing.T, addr string, db int, pattern string) int {
	t.Helper()
	client := oneShot(addr, db)
	defer client.Close()
	keys, err := client.Keys(context.Background(), pattern).Result()
	if err != nil {
		t.Fatalf("listing %s: %v", pattern, err)
	}
	return len(keys)
}

// consumeScript drains a producer table the way the APPL_DB consumer does:
// for every pending key, clear the live hash if the key is in the DEL_SET,
// then copy the staged fields into it.
//
// KEYS: key set, del set. ARGV: "<TABLE>:" prefix.
var consumeScript = redis.NewScript(`
local keys = redis.call("SMEMBERS", KEYS[1])
for _, key in ipairs(keys) do
	redis.call("SREM", KEYS[1], key)
	local live = ARGV[1] .. key
	if redis.call("SREM", KEYS[2], key) == 1 then
		redis.call("DEL", live)
	end
	local fv = redis.call("HGETALL", "_" .. live)
	for i = 1, #fv, 2 do
		redis.call("HSET", live, fv[i], fv[i + 1])
	end
	redis.call("DEL", "_" .. live)
end
return #keys
`)

// ConsumeTables applies every staged APPL_DB change of tables to the live
// hashes, standing in for orchagent. It returns the number of keys moved.
func ConsumeTables(t *testing.T, addr string, db int, tables ...string) int {
	t.Helper()
	client := oneShot(addr, db)
	defer client.Close()
	total := 0
	for _, table := range tables {
		n, err := consumeScript.Run(context.Background(), client,
			[]string{table + "_KEY_SET", table + "_DEL_SET"}, table+":").Int()
		if err != nil {
			t.Fatalf("consuming %s: %v", table, err)
		}
		total += n
	}
	return total
}
