package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session's conversation in a Redis list, trimmed to
// the window size on every append so the bound holds even across restarts.
type RedisStore struct {
	client  redis.Cmdable
	maxMsgs int
	ttl     time.Duration
}

// NewRedisStore creates a RedisStore bounded to maxMsgs turns per session.
// Sessions expire ttl after their last append; ttl <= 0 disables expiry.
func NewRedisStore(client redis.Cmdable, maxMsgs int, ttl time.Duration) *RedisStore {
	if maxMsgs <= 0 {
		maxMsgs = DefaultMaxMessages
	}
	return &RedisStore{client: client, maxMsgs: maxMsgs, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID + ":turns"
}

// Append adds a turn to the session log and trims it to the window size,
// evicting the oldest entries.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	key := sessionKey(sessionID)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-s.maxMsgs), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Snapshot returns the session's turns, oldest first. The result is freshly
// decoded from Redis, so it is already a private copy of the log.
func (s *RedisStore) Snapshot(ctx context.Context, sessionID string) ([]Turn, error) {
	key := sessionKey(sessionID)

	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var turn Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear deletes the session log entirely.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}
