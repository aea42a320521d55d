//go:build integration

package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/activity"
	"gatekeeper/pkg/domain"
	"gatekeeper/pkg/testutil/containers"
)

type RedisBufferSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	buffer *activity.RedisBuffer
}

func TestRedisBufferSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBufferSuite))
}

func (s *RedisBufferSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.buffer = activity.NewRedisBuffer(s.redis.Client)
}

func (s *RedisBufferSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(context.Background())
}

func (s *RedisBufferSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

type drainedEntry struct {
	member domain.MemberID
	group  domain.GroupID
	at     time.Time
}

func (s *RedisBufferSuite) drainAll() []drainedEntry {
	var entries []drainedEntry
	err := s.buffer.Drain(context.Background(), func(member domain.MemberID, group domain.GroupID, at time.Time) error {
		entries = append(entries, drainedEntry{member: member, group: group, at: at})
		return nil
	})
	s.Require().NoError(err)
	return entries
}

func (s *RedisBufferSuite) TestTouchThenDrain() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	s.Require().NoError(s.buffer.Touch(ctx, "1001", "2001", now))
	s.Require().NoError(s.buffer.Touch(ctx, "1002", "2001", now))

	entries := s.drainAll()

	s.Require().Len(entries, 2)
	for _, e := range entries {
		s.Equal(domain.GroupID("2001"), e.group)
		s.Equal(now.Unix(), e.at.Unix())
	}
}

func (s *RedisBufferSuite) TestRepeatedTouchKeepsOneEntry() {
	ctx := context.Background()
	first := time.Now().UTC().Truncate(time.Second)
	second := first.Add(time.Minute)

	s.Require().NoError(s.buffer.Touch(ctx, "1001", "2001", first))
	s.Require().NoError(s.buffer.Touch(ctx, "1001", "2001", second))

	entries := s.drainAll()

	s.Require().Len(entries, 1)
	s.Equal(second.Unix(), entries[0].at.Unix())
}

func (s *RedisBufferSuite) TestDrainRemovesDrainedEntries() {
	ctx := context.Background()

	s.Require().NoError(s.buffer.Touch(ctx, "1001", "2001", time.Now()))

	s.Require().Len(s.drainAll(), 1)
	s.Empty(s.drainAll())
}
