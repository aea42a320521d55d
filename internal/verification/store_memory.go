package verification

import (
	"context"
	"sync"
	"time"

	"gatekeeper/pkg/domain"
	"gatekeeper/pkg/platform/sentinel"
)

// InMemoryStore keeps verification state behind a single mutex. The lock
// doubles as the transaction boundary, so the combined mutations stay atomic
// the same way the SQL implementation's transactions do.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[MemberKey]MemberRecord
	pending map[MemberKey]PendingChallenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[MemberKey]MemberRecord),
		pending: make(map[MemberKey]PendingChallenge),
	}
}

func (s *InMemoryStore) GetMember(_ context.Context, member domain.MemberID, group domain.GroupID) (*MemberRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.members[MemberKey{member, group}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) EnsureMember(_ context.Context, member domain.MemberID, group domain.GroupID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	if _, ok := s.members[key]; ok {
		return false, nil
	}
	s.members[key] = MemberRecord{
		MemberID: member,
		GroupID:  group,
		State:    StateUnverified,
		JoinedAt: now,
	}
	return true, nil
}

func (s *InMemoryStore) DeleteMember(_ context.Context, member domain.MemberID, group domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	delete(s.members, key)
	delete(s.pending, key)
	return nil
}

func (s *InMemoryStore) UpsertPending(_ context.Context, pending PendingChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{pending.MemberID, pending.GroupID}
	record, ok := s.members[key]
	if !ok {
		record = MemberRecord{
			MemberID: pending.MemberID,
			GroupID:  pending.GroupID,
			JoinedAt: pending.IssuedAt,
		}
	}
	if record.State == StateVerified {
		return sentinel.ErrInvalidState
	}
	record.State = StatePending
	s.members[key] = record
	s.pending[key] = pending
	return nil
}

func (s *InMemoryStore) GetPending(_ context.Context, member domain.MemberID, group domain.GroupID) (*PendingChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending, ok := s.pending[MemberKey{member, group}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &pending, nil
}

func (s *InMemoryStore) DeletePending(_ context.Context, member domain.MemberID, group domain.GroupID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePendingLocked(MemberKey{member, group}), nil
}

func (s *InMemoryStore) DeletePendingIssuedAt(_ context.Context, member domain.MemberID, group domain.GroupID, issuedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	pending, ok := s.pending[key]
	if !ok || !pending.IssuedAt.Equal(issuedAt) {
		return false, nil
	}
	return s.deletePendingLocked(key), nil
}

func (s *InMemoryStore) deletePendingLocked(key MemberKey) bool {
	if _, ok := s.pending[key]; !ok {
		return false
	}
	delete(s.pending, key)
	if record, ok := s.members[key]; ok && record.State == StatePending {
		record.State = StateUnverified
		s.members[key] = record
	}
	return true
}

func (s *InMemoryStore) MarkVerified(_ context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	delete(s.pending, key)
	record, ok := s.members[key]
	if !ok {
		record = MemberRecord{MemberID: member, GroupID: group, JoinedAt: now}
	}
	record.State = StateVerified
	record.VerifiedAt = now
	record.LastActivity = now
	s.members[key] = record
	return nil
}

func (s *InMemoryStore) MarkUnverified(_ context.Context, member domain.MemberID, group domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	record, ok := s.members[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.State = StateUnverified
	record.VerifiedAt = time.Time{}
	record.LastActivity = time.Time{}
	s.members[key] = record
	return nil
}

func (s *InMemoryStore) TouchActivity(_ context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey{member, group}
	record, ok := s.members[key]
	if !ok || record.State != StateVerified {
		return nil
	}
	record.LastActivity = now
	s.members[key] = record
	return nil
}

func (s *InMemoryStore) ListVerified(_ context.Context, group domain.GroupID) ([]domain.MemberID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var members []domain.MemberID
	for key, record := range s.members {
		if key.GroupID == group && record.State == StateVerified {
			members = append(members, key.MemberID)
		}
	}
	return members, nil
}

func (s *InMemoryStore) ListExpiredVerified(_ context.Context, cutoff time.Time) ([]MemberKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []MemberKey
	for key, record := range s.members {
		if record.State == StateVerified && record.LastActivity.Before(cutoff) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
