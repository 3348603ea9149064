package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records, per Firebase uid, the instant before which every
// previously issued token is rejected.
type RevocationStore interface {
	ValidAfter(ctx context.Context, subject string) (time.Time, error)
	Revoke(ctx context.Context, subject string, at time.Time) error
}

// RedisRevocationStore keeps one key per revoked subject.  ID tokens live
// at most an hour, so keys expire once every token they could reject has
// expired on its own.
type RedisRevocationStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb, prefix: "revoked", ttl: 2 * time.Hour}
}

func (s *RedisRevocationStore) key(subject string) string { return s.prefix + ":" + subject }

func (s *RedisRevocationStore) ValidAfter(ctx context.Context, subject string) (time.Time, error) {
	v, err := s.rdb.Get(ctx, s.key(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, subject string, at time.Time) error {
	return s.rdb.Set(ctx, s.key(subject), strconv.FormatInt(at.Unix(), 10), s.ttl).Err()
}
