package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gamefinder/internal/domain"
)

const redisTokenKey = "gamefinder:twitch:token"

// RedisStore keeps the access token in Redis so replicas reuse one token.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: redisTokenKey}
}

func (r *RedisStore) Load(ctx context.Context) (domain.AccessToken, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AccessToken{}, false, nil
		}
		return domain.AccessToken{}, false, err
	}
	var token domain.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return domain.AccessToken{}, false, err
	}
	return token, true, nil
}

// Save stores the token with a TTL matching its remaining lifetime.
func (r *RedisStore) Save(ctx context.Context, token domain.AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !token.ExpiresAt.IsZero() {
		ttl = time.Until(token.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
