package routesync

// Observer receives per-message outcomes, e.g. for metrics.
type Observer interface {
	RouteProcessed(family string)
	RouteDropped(family, reason string)
	OffloadAck(ok bool)
}

type nopObserver struct{}

func (nopObserver) RouteProcessed(string)       {}
func (nopObserver) RouteDropped(string, string) {}
func (nopObserver) OffloadAck(bool)             {}

// Route families, used as log fields and metric labels.
const (
	FamilyRoute     = "route"
	FamilyVRF       = "vrf"
	FamilyEVPN      = "evpn"
	FamilyLabel     = "label"
	FamilyVNET      = "vnet"
	FamilySRv6Steer = "srv6_steer"
	FamilyMySID     = "srv6_mysid"
	FamilyUnknown   = "unknown"
)

// Drop reasons, one per error class.
const (
	ReasonMalformed   = "malformed"
	ReasonUnsupported = "unsupported"
	ReasonInvalid     = "invalid"
	ReasonSkipped     = "skipped"
	ReasonWrite       = "write"
)
