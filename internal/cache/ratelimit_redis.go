package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "checkout_rl:"

// Fenêtre fixe : la clé naît au premier hit et expire à la fin de la fenêtre.
// Retourne {autorisé, compteur, pttl}.
var hitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return {0, current, redis.call('PTTL', KEYS[1])}
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, n, redis.call('PTTL', KEYS[1])}
`)

// RedisCounterStore partage les compteurs de rate limit entre instances
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Hit(ctx context.Context, key string, max int, window time.Duration) (HitResult, error) {
	res, err := hitScript.Run(ctx, s.client, []string{rateLimitPrefix + key}, max, window.Milliseconds()).Int64Slice()
	if err != nil {
		return HitResult{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return HitResult{}, fmt.Errorf("rate limit %s: réponse inattendue %v", key, res)
	}

	count := int(res[1])
	retryAfter := time.Duration(res[2]) * time.Millisecond
	if retryAfter <= 0 {
		retryAfter = window
	}

	if res[0] == 0 {
		return HitResult{Allowed: false, Count: count, Remaining: 0, RetryAfter: retryAfter}, nil
	}
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return HitResult{Allowed: true, Count: count, Remaining: remaining, RetryAfter: retryAfter}, nil
}
