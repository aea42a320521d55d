package domain

import dErrors "gatekeeper/pkg/domain-errors"

// MemberID identifies a member of the external communication platform.
// The platform hands these out as opaque numeric strings (snowflakes); we
// never parse or order them.
type MemberID string

// GroupID identifies the community/namespace a member's verification status
// is scoped to. A member can hold independent records in several groups.
type GroupID string

// RoleID identifies a permission role in the external role mirror.
type RoleID string

// ChannelID identifies a channel inside a group, used only when posting the
// challenge-entry prompt.
type ChannelID string

func (m MemberID) String() string  { return string(m) }
func (g GroupID) String() string   { return string(g) }
func (r RoleID) String() string    { return string(r) }
func (c ChannelID) String() string { return string(c) }

// ParseMemberID constructs a MemberID from external input.
//
// Usage: call from handlers/adapters when parsing requests; direct casting
// bypasses validation.
func ParseMemberID(s string) (MemberID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "member id cannot be empty")
	}
	return MemberID(s), nil
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "group id cannot be empty")
	}
	return GroupID(s), nil
}
