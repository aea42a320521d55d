package activity

import (
	"context"
	"sync"
	"time"

	"gatekeeper/internal/verification"
	"gatekeeper/pkg/domain"
)

// MemoryBuffer is the in-process fallback when Redis is not configured, and
// the buffer used by unit tests.
type MemoryBuffer struct {
	mu      sync.Mutex
	entries map[verification.MemberKey]time.Time
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{entries: make(map[verification.MemberKey]time.Time)}
}

func (b *MemoryBuffer) Touch(_ context.Context, member domain.MemberID, group domain.GroupID, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[verification.MemberKey{MemberID: member, GroupID: group}] = at
	return nil
}

func (b *MemoryBuffer) Drain(_ context.Context, visit func(member domain.MemberID, group domain.GroupID, at time.Time) error) error {
	b.mu.Lock()
	entries := b.entries
	b.entries = make(map[verification.MemberKey]time.Time)
	b.mu.Unlock()

	for key, at := range entries {
		if err := visit(key.MemberID, key.GroupID, at); err != nil {
			// Dropped, not retried: a missed touch only delays expiry.
			continue
		}
	}
	return nil
}

// Len reports the number of buffered entries, for tests.
func (b *MemoryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
