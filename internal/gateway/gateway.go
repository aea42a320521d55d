// Package gateway defines the narrow contracts this service holds against the
// external communication platform: the role mirror it reconciles, and the
// outbound surfaces used to answer interactions and post prompts.
//
// The mirror is eventually stale relative to the verification store; callers
// must treat every mutation as fallible and rely on reconciliation, never on
// inline retries, to restore correspondence.
package gateway

import (
	"context"

	"gatekeeper/pkg/domain"
)

// Member is one entry of a group's membership listing.
type Member struct {
	ID    domain.MemberID
	IsBot bool
}

// RoleSet is the set of roles currently granted to a member.
type RoleSet map[domain.RoleID]bool

// Has reports whether the set contains the role. The zero role is never held.
func (s RoleSet) Has(role domain.RoleID) bool {
	if role == "" {
		return false
	}
	return s[role]
}

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

// Mirror is the external system of record for permission grants. It is
// queried and mutated but not owned by this service.
type Mirror interface {
	ListGroups(ctx context.Context) ([]domain.GroupID, error)
	ListMembers(ctx context.Context, group domain.GroupID) ([]Member, error)
	GrantedRoles(ctx context.Context, member domain.MemberID, group domain.GroupID) (RoleSet, error)
	GrantRole(ctx context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error
	RevokeRole(ctx context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error
}

// Responder delivers short caller-private replies to interactions.
type Responder interface {
	RespondEphemeral(ctx context.Context, interactionID string, content string) error
}

// Announcer posts the challenge-entry prompt into a designated channel.
type Announcer interface {
	PostPrompt(ctx context.Context, group domain.GroupID, channel domain.ChannelID, content string) error
}
