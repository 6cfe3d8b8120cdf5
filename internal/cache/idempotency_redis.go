package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront_back_end/internal/models"
)

const idempotencyPrefix = "idempotency:"

// Supprime la clé seulement si la réservation porte encore le même jeton
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local entry = cjson.decode(raw)
if entry.pending and entry.token == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisIdempotencyStore partage les clés d'idempotence entre instances.
// Reserve s'appuie sur SET NX, l'expiration est confiée à Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    func() time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl func() time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*models.CachedSession, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture idempotence %s: %w", key, err)
	}

	var entry models.CachedSession
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("entrée idempotence corrompue %s: %w", key, err)
	}
	return &entry, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key, sessionID string, redirectURL *string) error {
	data, err := json.Marshal(models.CachedSession{
		SessionID:        sessionID,
		RedirectURL:      redirectURL,
		CreatedAtEpochMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyPrefix+key, data, s.ttl()).Err()
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, token string) (bool, error) {
	data, err := json.Marshal(models.CachedSession{
		CreatedAtEpochMs: time.Now().UnixMilli(),
		Pending:          true,
		Token:            token,
	})
	if err != nil {
		return false, err
	}

	lifetime := s.ttl()
	if ReservationTTL < lifetime {
		lifetime = ReservationTTL
	}
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, data, lifetime).Result()
	if err != nil {
		return false, fmt.Errorf("réservation idempotence %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{idempotencyPrefix + key}, token).Err()
}

func (s *RedisIdempotencyStore) Clear(ctx context.Context) error {
	keys, err := scanKeys(ctx, s.client, idempotencyPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisIdempotencyStore) Size(ctx context.Context) (int, error) {
	keys, err := scanKeys(ctx, s.client, idempotencyPrefix+"*")
	return len(keys), err
}
