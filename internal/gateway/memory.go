package gateway

import (
	"context"
	"fmt"
	"sync"

	"gatekeeper/pkg/domain"
)

// FakeMirror is an in-memory Mirror used by tests and local development. It
// counts mutations so reconciliation tests can assert idempotence, and can be
// told to fail grants for specific members to exercise isolation paths.
type FakeMirror struct {
	mu      sync.Mutex
	members map[domain.GroupID]map[domain.MemberID]Member
	roles   map[domain.GroupID]map[domain.MemberID]RoleSet

	Grants      int
	Revokes     int
	FailMembers map[domain.MemberID]bool
}

func NewFakeMirror() *FakeMirror {
	return &FakeMirror{
		members:     make(map[domain.GroupID]map[domain.MemberID]Member),
		roles:       make(map[domain.GroupID]map[domain.MemberID]RoleSet),
		FailMembers: make(map[domain.MemberID]bool),
	}
}

// AddMember registers a member in a group's listing, optionally with roles
// already granted (to simulate drift).
func (f *FakeMirror) AddMember(group domain.GroupID, member Member, roles ...domain.RoleID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[group] == nil {
		f.members[group] = make(map[domain.MemberID]Member)
		f.roles[group] = make(map[domain.MemberID]RoleSet)
	}
	f.members[group][member.ID] = member
	set := make(RoleSet)
	for _, r := range roles {
		set[r] = true
	}
	f.roles[group][member.ID] = set
}

// RemoveMember drops a member from a group's listing.
func (f *FakeMirror) RemoveMember(group domain.GroupID, member domain.MemberID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[group], member)
	delete(f.roles[group], member)
}

// MutationCount returns grants plus revokes performed so far.
func (f *FakeMirror) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Grants + f.Revokes
}

func (f *FakeMirror) ListGroups(_ context.Context) ([]domain.GroupID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	groups := make([]domain.GroupID, 0, len(f.members))
	for g := range f.members {
		groups = append(groups, g)
	}
	return groups, nil
}

func (f *FakeMirror) ListMembers(_ context.Context, group domain.GroupID) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]Member, 0, len(f.members[group]))
	for _, m := range f.members[group] {
		members = append(members, m)
	}
	return members, nil
}

func (f *FakeMirror) GrantedRoles(_ context.Context, member domain.MemberID, group domain.GroupID) (RoleSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(RoleSet, len(f.roles[group][member]))
	for r := range f.roles[group][member] {
		set[r] = true
	}
	return set, nil
}

func (f *FakeMirror) GrantRole(_ context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailMembers[member] {
		return fmt.Errorf("grant rejected for member %s", member)
	}
	if f.roles[group] == nil {
		f.roles[group] = make(map[domain.MemberID]RoleSet)
	}
	if f.roles[group][member] == nil {
		f.roles[group][member] = make(RoleSet)
	}
	f.roles[group][member][role] = true
	f.Grants++
	return nil
}

func (f *FakeMirror) RevokeRole(_ context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailMembers[member] {
		return fmt.Errorf("revoke rejected for member %s", member)
	}
	delete(f.roles[group][member], role)
	f.Revokes++
	return nil
}

// FakeResponder records ephemeral replies for assertions.
type FakeResponder struct {
	mu      sync.Mutex
	Replies map[string][]string
}

func NewFakeResponder() *FakeResponder {
	return &FakeResponder{Replies: make(map[string][]string)}
}

func (f *FakeResponder) RespondEphemeral(_ context.Context, interactionID string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies[interactionID] = append(f.Replies[interactionID], content)
	return nil
}

// FakeAnnouncer records posted prompts for assertions.
type FakeAnnouncer struct {
	mu      sync.Mutex
	Prompts []string
}

func (f *FakeAnnouncer) PostPrompt(_ context.Context, _ domain.GroupID, _ domain.ChannelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, content)
	return nil
}
