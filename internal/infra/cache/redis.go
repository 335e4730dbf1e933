package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"insta-timetable-bot/internal/domain"
)

// RedisCache реализует domain.Cache через Redis. Используется как кэш кодов
// школы и как одноразовый замок ежедневного запуска.
type RedisCache struct {
	client *redis.Client
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш по адресу Redis.
func NewRedis(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Once выполняет fn, только если ключ ещё не был установлен. При ошибке fn
// ключ снимается, чтобы следующий запуск мог повторить работу.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

// Set задаёт значение с TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get возвращает значение; для отсутствующего ключа — redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}

// IsMiss сообщает, что ошибка Get означает отсутствие ключа.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
