// Package redisrepo stores credentials in redis for deployments where
// several worker processes share one API session and must observe each
// other's refresh rotations.
package redisrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-docs-client/credentials"
	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

const keyPrefix = "docsclient:"

var _ credentials.Repo = (*RedisRepo)(nil)

type RedisRepo struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", clienterrors.ErrKeyNotFound
		}
		return "", errors.Wrapf(err, "[RedisRepo.Get] %q", key)
	}
	return value, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "[RedisRepo.Set] %q", key)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, keyPrefix+key)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] delete keys")
	}
	return nil
}
