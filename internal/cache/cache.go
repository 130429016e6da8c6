package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	KeyCarts    = "carts:"
	KeyProducts = "products:"
)

// JSONCache stores values of one type as JSON strings under prefix+key. A
// random jitter of up to a fifth of the TTL spreads out expiries.
type JSONCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewJSONCache[T any](client *redis.Client, prefix string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (j *JSONCache[T]) Key(key string) string {
	return j.prefix + key
}

func (j *JSONCache[T]) Get(c context.Context, key string) (T, error) {
	var value T
	data, err := j.client.Get(c, j.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, ErrCacheMiss
	}
	if err != nil {
		return value, fmt.Errorf("failed getting key=%s from redis with error=%w", j.Key(key), err)
	}
	if err = json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed unmarshaling key=%s with error=%w", j.Key(key), err)
	}
	return value, nil
}

func (j *JSONCache[T]) Set(c context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed marshaling key=%s with error=%w", j.Key(key), err)
	}
	ttl := j.ttl
	if ttl > 0 {
		ttl += time.Duration(rand.Int64N(int64(ttl)/5 + 1))
	}
	if err = j.client.Set(c, j.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed setting key=%s in redis with error=%w", j.Key(key), err)
	}
	return nil
}

func (j *JSONCache[T]) Delete(c context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, j.Key(key))
	}
	if err := j.client.Del(c, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed deleting keys=%v from redis with error=%w", prefixed, err)
	}
	return nil
}
