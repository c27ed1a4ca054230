package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// RedisStore shares sessions between processes. Every save refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("sessions: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "clinic:session:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, errs.NotFound("session not found").Arg("session", key)
		}
		return State{}, errs.Transport("failed to load session").Arg("session", key).Wrap(err)
	}
	var st State
	if err = json.Unmarshal(data, &st); err != nil {
		return State{}, errs.New("failed to decode session").Arg("session", key).Wrap(err)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errs.New("failed to encode session").Arg("session", key).Wrap(err)
	}
	if err = s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return errs.Transport("failed to save session").Arg("session", key).Wrap(err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errs.Transport("failed to delete session").Arg("session", key).Wrap(err)
	}
	return nil
}
