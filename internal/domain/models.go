// Package domain defines the core data types shared across the gridhud
// server, registry, and store layers.
package domain

// Sentinel values returned for subjects the registry has never seen.
const (
	UnknownName        = "unknown"
	UnknownAffiliation = "unknown"
)

// Subject is the identity record the registry keeps per external avatar
// identifier.
type Subject struct {
	ID          string
	Name        string
	Affiliation string
	Region      string
	CallbackURL string
	FirstSeen   int64 // unix seconds, set once at first registration
	LastSeen    int64 // unix seconds, updated on every registration
}

// Registration is the validated payload of a register request. Empty
// optional fields leave the stored values untouched on re-registration.
type Registration struct {
	ID          string
	Name        string
	Region      string
	CallbackURL string
}

// ScanResult is a single bulk-lookup outcome. Unknown ids carry the
// sentinel name/affiliation and zero age.
type ScanResult struct {
	ID          string
	Name        string
	Affiliation string
	Days        int64
	Known       bool
}

// AgeDays returns the whole days elapsed between firstSeen and now, both in
// unix seconds. Spans that would be negative clamp to zero.
func AgeDays(firstSeen, now int64) int64 {
	if now <= firstSeen {
		return 0
	}
	return (now - firstSeen) / 86400
}
