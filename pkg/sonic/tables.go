// Package sonic reads and writes the SONiC redis databases: route records
// in APPL_DB, warm-restart state in STATE_DB, daemon knobs in CONFIG_DB, and
// route programming responses on APPL_STATE_DB.
package sonic

import (
	"strconv"
	"strings"
)

// Redis database numbers.
const (
	ApplDBNum      = 0
	ConfigDBNum    = 4
	StateDBNum     = 6
	ApplStateDBNum = 14
)

// APPL_DB tables written by the route syncer.
const (
	RouteTable           = "ROUTE_TABLE"
	LabelRouteTable      = "LABEL_ROUTE_TABLE"
	VnetRouteTable       = "VNET_ROUTE_TABLE"
	VnetRouteTunnelTable = "VNET_ROUTE_TUNNEL_TABLE"
	SRv6SIDListTable     = "SRV6_SID_LIST_TABLE"
	SRv6MySIDTable       = "SRV6_MY_SID_TABLE"
)

// Tables lists every APPL_DB table the route syncer owns.
var Tables = []string{
	RouteTable,
	LabelRouteTable,
	VnetRouteTable,
	VnetRouteTunnelTable,
	SRv6SIDListTable,
	SRv6MySIDTable,
}

// Key separators. APPL_DB uses ':'; CONFIG_DB and STATE_DB use '|'.
const (
	ApplSeparator   = ":"
	ConfigSeparator = "|"
)

// Producer/consumer table naming in APPL_DB.
const (
	keySetSuffix   = "_KEY_SET"
	delSetSuffix   = "_DEL_SET"
	channelSuffix  = "_CHANNEL"
	stagingPrefix  = "_"
	producerSignal = "G"
)

// KeySetName is the set of keys with staged changes for table.
func KeySetName(table string) string { return table + keySetSuffix }

// DelSetName is the set of keys whose live entry is cleared before the
// staged fields are applied.
func DelSetName(table string) string { return table + delSetSuffix }

// ChannelName is the channel a producer signals after staging a new key.
func ChannelName(table string, db int) string {
	return table + channelSuffix + "@" + strconv.Itoa(db)
}

// StagingKey is the hash holding key's staged fields.
func StagingKey(table, key string) string {
	return stagingPrefix + ApplKey(table, key)
}

// TableChange represents a single change for pipeline execution.
type TableChange struct {
	Table  string
	Key    string
	Fields map[string]string // nil means delete
}

// Set returns an upsert of key with exactly fields.
func Set(table, key string, fields map[string]string) TableChange {
	if fields == nil {
		fields = map[string]string{}
	}
	return TableChange{Table: table, Key: key, Fields: fields}
}

// Del returns a deletion of key.
func Del(table, key string) TableChange {
	return TableChange{Table: table, Key: key}
}

// IsDelete reports whether the change removes its key.
func (c TableChange) IsDelete() bool {
	return c.Fields == nil
}

// Op returns "SET" or "DEL".
func (c TableChange) Op() string {
	if c.IsDelete() {
		return "DEL"
	}
	return "SET"
}

// ApplKey returns the redis key of an APPL_DB entry.
func ApplKey(table, key string) string {
	return table + ApplSeparator + key
}

// ConfigKey returns the redis key of a CONFIG_DB or STATE_DB entry.
func ConfigKey(table, key string) string {
	return table + ConfigSeparator + key
}

// splitApplKey splits a redis key into table and entry key. Entry keys may
// themselves contain the separator (VRF-qualified routes).
func splitApplKey(redisKey string) (table, key string, ok bool) {
	return strings.Cut(redisKey, ApplSeparator)
}

// EqualFields reports whether two field sets are identical.
func EqualFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
