package verification

import (
	"context"
	"time"

	"gatekeeper/pkg/domain"
)

// Store is the single source of truth for logical verification state.
//
// Implementations must make every mutation atomic: transitions that touch
// both the member row and the pending-challenge row (UpsertPending,
// MarkVerified, DeletePending) commit within one transaction so no caller
// can observe an intermediate state where the state tag and the pending row
// disagree.
//
// Row absence is reported with sentinel.ErrNotFound, state guards with
// sentinel.ErrInvalidState; both may be wrapped.
type Store interface {
	// GetMember fetches the verification record for a pair.
	GetMember(ctx context.Context, member domain.MemberID, group domain.GroupID) (*MemberRecord, error)

	// EnsureMember creates an Unverified record when none exists. It is an
	// idempotent insert: returns true when a row was created, false when
	// one was already present (which is never an error).
	EnsureMember(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) (bool, error)

	// DeleteMember purges the record and any pending challenge for the
	// pair. Used when the member leaves the group. Deleting an absent
	// member is a no-op.
	DeleteMember(ctx context.Context, member domain.MemberID, group domain.GroupID) error

	// UpsertPending replaces the pair's pending challenge and moves the
	// member to StatePending. A challenge issued for an already-pending
	// member overwrites in place; issuing against a Verified member fails
	// with sentinel.ErrInvalidState.
	UpsertPending(ctx context.Context, pending PendingChallenge) error

	// GetPending fetches the live pending challenge for a pair.
	GetPending(ctx context.Context, member domain.MemberID, group domain.GroupID) (*PendingChallenge, error)

	// DeletePending removes the pending challenge and reverts the member
	// to StateUnverified. Returns false when no challenge was live.
	DeletePending(ctx context.Context, member domain.MemberID, group domain.GroupID) (bool, error)

	// DeletePendingIssuedAt removes the pending challenge only when its
	// issuance time matches. This is the timeout cleanup: if the member
	// already resolved the challenge, or a fresh one replaced it, nothing
	// matches and the call is a no-op returning false.
	DeletePendingIssuedAt(ctx context.Context, member domain.MemberID, group domain.GroupID, issuedAt time.Time) (bool, error)

	// MarkVerified performs the accept transition in one transaction:
	// delete the pending challenge, set StateVerified, and stamp both
	// verified_at and last_activity with now.
	MarkVerified(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error

	// MarkUnverified reverts a member to StateUnverified, clearing the
	// verification timestamps. Used by the expiry sweep and by reconcile
	// repairs.
	MarkUnverified(ctx context.Context, member domain.MemberID, group domain.GroupID) error

	// TouchActivity refreshes last_activity if and only if the member is
	// currently Verified; otherwise it is a silent no-op.
	TouchActivity(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error

	// ListVerified returns the members of a group whose state is Verified.
	ListVerified(ctx context.Context, group domain.GroupID) ([]domain.MemberID, error)

	// ListExpiredVerified returns Verified pairs whose last activity is
	// strictly older than cutoff, across all groups.
	ListExpiredVerified(ctx context.Context, cutoff time.Time) ([]MemberKey, error)
}
