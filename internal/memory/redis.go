package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "jarvis:memory:"

// saveMessageScript assigns the next sequence number and appends the message
// to the user's list in one step, so list order and seq always agree.
// KEYS[1] = global sequence key
// KEYS[2] = per-user list key
// ARGV[1] = message JSON without seq
var saveMessageScript = redis.NewScript(`
local seq = redis.call("INCR", KEYS[1])
local msg = cjson.decode(ARGV[1])
msg["seq"] = seq
redis.call("RPUSH", KEYS[2], cjson.encode(msg))
return seq
`)

// RedisStore keeps each user's log in a Redis list.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func userListKey(userID string) string {
	return redisKeyPrefix + "user:" + userID
}

func (s *RedisStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return Message{}, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("encode message: %w", err)
	}
	seq, err := saveMessageScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + "seq", userListKey(msg.UserID)},
		string(payload),
	).Int64()
	if err != nil {
		return Message{}, fmt.Errorf("save message: %w", err)
	}
	msg.Seq = seq
	return msg, nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, userID string, limit int, roles ...Role) ([]Message, error) {
	limit = normalizeLimit(limit)
	start := int64(-limit)
	if len(roles) > 0 {
		start = 0
	}
	items, err := s.load(ctx, userID, start)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	out := make([]Message, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		if hasRole(roles, items[i].Role) {
			out = append(out, items[i])
		}
	}
	reverse(out)
	return out, nil
}

func (s *RedisStore) Messages(ctx context.Context, userID string, role Role) ([]Message, error) {
	items, err := s.load(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	var out []Message
	for _, m := range items {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *RedisStore) load(ctx context.Context, userID string, start int64) ([]Message, error) {
	raw, err := s.client.LRange(ctx, userListKey(userID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw, userID)
}

// decodeMessages drops entries whose user id does not match the list owner.
func decodeMessages(raw []string, userID string) ([]Message, error) {
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if m.UserID != userID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) Close() error { return s.client.Close() }
