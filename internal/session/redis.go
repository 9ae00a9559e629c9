package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore persists sessions in Redis so they survive restarts and can
// be shared across instances. TTL handling is delegated to Redis key expiry.
type RedisStore struct {
	redisdb *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisStore{redisdb: redisdb}
}

// Ping checks redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redisdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.redisdb.Close()
}

func (s *RedisStore) Set(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.redisdb.Set(ctx, redisKeyPrefix+token, username, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, bool, error) {
	val, err := s.redisdb.Get(ctx, redisKeyPrefix+token).Result()

	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return val, true, nil
}

func (s *RedisStore) Touch(ctx context.Context, token string, ttl time.Duration) error {
	return s.redisdb.Expire(ctx, redisKeyPrefix+token, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.redisdb.Del(ctx, redisKeyPrefix+token).Err()
}
