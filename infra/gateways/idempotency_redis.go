package gateways

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:payment:"

type IdempotencyGatewayRedis struct {
	client    *redis.Client
	retention time.Duration
}

func NewIdempotencyGatewayRedis(client *redis.Client, retention time.Duration) *IdempotencyGatewayRedis {
	return &IdempotencyGatewayRedis{client: client, retention: retention}
}

func (g *IdempotencyGatewayRedis) key(reference string) string {
	return idempotencyKeyPrefix + reference
}

func (g *IdempotencyGatewayRedis) ReserveReference(ctx context.Context, reference string) error {
	k := g.key(reference)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := g.client.SetArgs(ctx, k, statusProcessing, redis.SetArgs{Mode: "NX", TTL: g.retention}).Result()
		if err == nil {
			return nil
		}
		if err != redis.Nil {
			return fmt.Errorf("redis set: %w", err)
		}

		status, err := g.client.Get(ctx, k).Result()
		if err == redis.Nil {
			// released between SET NX and GET
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		if status == statusSuccess {
			return ErrReferenceUsed
		}
		return ErrReferenceInFlight
	}
}

func (g *IdempotencyGatewayRedis) MarkFailure(ctx context.Context, reference string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return g.client.Del(ctx, g.key(reference)).Err()
}

func (g *IdempotencyGatewayRedis) MarkSuccess(ctx context.Context, reference string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return g.client.Set(ctx, g.key(reference), statusSuccess, g.retention).Err()
}

func (g *IdempotencyGatewayRedis) HasBeenUsed(ctx context.Context, reference string) (bool, error) {
	status, err := g.client.Get(ctx, g.key(reference)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return status == statusSuccess, nil
}
