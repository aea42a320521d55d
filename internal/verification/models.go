package verification

import (
	"time"

	"gatekeeper/pkg/domain"
)

// State is the lifecycle state of a member within one group.
//
// Invariant: a member in StatePending has exactly one pending challenge row,
// and StateVerified excludes a live pending challenge. Both are enforced by
// the store's single-transaction mutations, not by callers.
type State string

const (
	// StateUnverified is the default for a new or not-yet-verified member.
	// The role mirror should hold the unverified marker (if configured) and
	// none of the verified roles.
	StateUnverified State = "unverified"
	// StatePending means a challenge is issued and unresolved. External
	// roles are unchanged from StateUnverified until resolution.
	StatePending State = "pending"
	// StateVerified means the challenge was answered correctly. The mirror
	// should hold all verified roles and not the marker.
	StateVerified State = "verified"
)

var validStates = map[State]bool{
	StateUnverified: true,
	StatePending:    true,
	StateVerified:   true,
}

// IsValid checks if the state is one of the supported enum values.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// MemberKey identifies a verification record: one member within one group.
type MemberKey struct {
	MemberID domain.MemberID
	GroupID  domain.GroupID
}

// MemberRecord is the durable verification record for a (member, group)
// pair. The store owns it exclusively; it is created on first observation,
// mutated only through state-machine transitions, and deleted when the
// member leaves the group.
type MemberRecord struct {
	MemberID domain.MemberID
	GroupID  domain.GroupID
	State    State
	JoinedAt time.Time
	// VerifiedAt is zero unless State is StateVerified.
	VerifiedAt time.Time
	// LastActivity is meaningful only when State is StateVerified; the
	// expiry sweep compares it against the inactivity threshold.
	LastActivity time.Time
}

// IsVerified reports whether the member currently holds verified status.
func (r *MemberRecord) IsVerified() bool {
	return r != nil && r.State == StateVerified
}

// PendingChallenge is the single live challenge for a (member, group) pair.
// Re-issuing overwrites it in place; it never coexists with StateVerified.
// The stored expected answer is the sole authority for correctness — the
// client's answer set is never consulted.
type PendingChallenge struct {
	MemberID       domain.MemberID
	GroupID        domain.GroupID
	ExpectedAnswer int
	IssuedAt       time.Time
}
