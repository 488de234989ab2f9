package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per room (field per user, value display name) and
// one string key per (room, user) heartbeat. Every write refreshes the TTL so
// entries leaked by a crashed process age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) roomKey(room string) string {
	return "presence:" + room
}

func (s *RedisStore) heartbeatKey(room, username string) string {
	return "hb:" + room + ":" + username
}

func (s *RedisStore) Upsert(ctx context.Context, room, username, displayName string) error {
	key := s.roomKey(room)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, username, displayName)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence upsert: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, room, username string) (bool, error) {
	removed, err := s.client.HDel(ctx, s.roomKey(room), username).Result()
	if err != nil {
		return false, fmt.Errorf("presence remove: %w", err)
	}
	if err := s.client.Del(ctx, s.heartbeatKey(room, username)).Err(); err != nil {
		return removed > 0, fmt.Errorf("presence remove heartbeat: %w", err)
	}
	return removed > 0, nil
}

func (s *RedisStore) Snapshot(ctx context.Context, room string) ([]Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.roomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence snapshot: %w", err)
	}
	out := make([]Entry, 0, len(fields))
	for username, displayName := range fields {
		out = append(out, Entry{Username: username, DisplayName: displayName})
	}
	return out, nil
}

func (s *RedisStore) TouchHeartbeat(ctx context.Context, room, username string) error {
	stamp := strconv.FormatInt(s.now().UnixNano(), 10)
	err := s.client.Set(ctx, s.heartbeatKey(room, username), stamp, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("presence touch: %w", err)
	}
	return nil
}

func (s *RedisStore) HeartbeatAge(ctx context.Context, room, username string) (time.Duration, bool, error) {
	raw, err := s.client.Get(ctx, s.heartbeatKey(room, username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("presence age: %w", err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("presence age parse: %w", err)
	}
	return s.now().Sub(time.Unix(0, nanos)), true, nil
}

func (s *RedisStore) Clear(ctx context.Context, room string) error {
	fields, err := s.client.HKeys(ctx, s.roomKey(room)).Result()
	if err != nil {
		return fmt.Errorf("presence clear: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.roomKey(room))
	for _, username := range fields {
		pipe.Del(ctx, s.heartbeatKey(room, username))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence clear: %w", err)
	}
	return nil
}
