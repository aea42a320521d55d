package activity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper/pkg/domain"
)

const activityKeyPrefix = "act:"

// RedisBuffer stages activity timestamps in Redis under one key per
// (group, member) pair. Repeated touches overwrite, so the buffer holds at
// most one entry per pair regardless of traffic volume.
type RedisBuffer struct {
	client *redis.Client
}

// NewRedisBuffer constructs a Redis-backed activity buffer.
func NewRedisBuffer(client *redis.Client) *RedisBuffer {
	return &RedisBuffer{client: client}
}

func activityKey(member domain.MemberID, group domain.GroupID) string {
	return activityKeyPrefix + group.String() + ":" + member.String()
}

func (b *RedisBuffer) Touch(ctx context.Context, member domain.MemberID, group domain.GroupID, at time.Time) error {
	return b.client.Set(ctx, activityKey(member, group), strconv.FormatInt(at.Unix(), 10), 0).Err()
}

// Drain scans the buffered keys, visits each entry, and deletes the visited
// keys in one pipeline. A touch arriving between GET and DEL is lost; it
// would only have moved last_activity forward by seconds.
func (b *RedisBuffer) Drain(ctx context.Context, visit func(member domain.MemberID, group domain.GroupID, at time.Time) error) error {
	iter := b.client.Scan(ctx, 0, activityKeyPrefix+"*", 0).Iterator()
	var drained []string
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := b.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return fmt.Errorf("read activity key %s: %w", key, err)
		}

		member, group, ok := parseActivityKey(key)
		if !ok {
			drained = append(drained, key)
			continue
		}
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			drained = append(drained, key)
			continue
		}
		if err := visit(member, group, time.Unix(seconds, 0).UTC()); err == nil {
			drained = append(drained, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan activity keys: %w", err)
	}

	if len(drained) > 0 {
		pipe := b.client.Pipeline()
		for _, key := range drained {
			pipe.Del(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("delete drained keys: %w", err)
		}
	}
	return nil
}

func parseActivityKey(key string) (domain.MemberID, domain.GroupID, bool) {
	rest, ok := strings.CutPrefix(key, activityKeyPrefix)
	if !ok {
		return "", "", false
	}
	group, member, ok := strings.Cut(rest, ":")
	if !ok || group == "" || member == "" {
		return "", "", false
	}
	return domain.MemberID(member), domain.GroupID(group), true
}
