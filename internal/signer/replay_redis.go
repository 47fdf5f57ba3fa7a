package signer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "signer:jti:"

// RedisReplayGuard shares claimed assertion IDs across instances. Keys expire
// with the assertion, after which the token is rejected as expired anyway.
type RedisReplayGuard struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, now: time.Now}
}

// Claim records id with SETNX. A second claim before expiry returns ErrReplayed.
func (g *RedisReplayGuard) Claim(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(g.now())
	if ttl <= 0 {
		return ErrReplayed
	}
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+id, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}
