package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "tunebox||"

var _ Backend = (*RedisBackend)(nil)

type RedisBackend struct {
	redisClient *redis.Client
}

func NewRedisBackend(redisClient *redis.Client) *RedisBackend {
	return &RedisBackend{
		redisClient: redisClient,
	}
}

func (b *RedisBackend) ForClient(clientID string) Storage {
	return &redisStorage{redisClient: b.redisClient, clientID: clientID}
}

func redisItemKey(clientID, key string) string {
	return redisKeyPrefix + clientID + "||" + key
}

type redisStorage struct {
	redisClient *redis.Client
	clientID    string
}

func (s *redisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.clientID == "" {
		return "", false, ErrEmptyClientID
	}

	val, err := s.redisClient.Get(ctx, redisItemKey(s.clientID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *redisStorage) SetItem(ctx context.Context, key, value string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	if err := s.redisClient.Set(ctx, redisItemKey(s.clientID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *redisStorage) RemoveItem(ctx context.Context, key string) error {
	if s.clientID == "" {
		return ErrEmptyClientID
	}

	if err := s.redisClient.Del(ctx, redisItemKey(s.clientID, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
