package gateways

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisGateway(t *testing.T) (*IdempotencyGatewayRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIdempotencyGatewayRedis(client, time.Hour), mr
}

func TestIdempotencyRedisReserveAndCommit(t *testing.T) {
	ctx := context.Background()
	g, _ := newRedisGateway(t)

	if err := g.ReserveReference(ctx, "TX1"); err != nil {
		t.Fatalf("expected first reservation to succeed, got %v", err)
	}
	if err := g.ReserveReference(ctx, "TX1"); !errors.Is(err, ErrReferenceInFlight) {
		t.Fatalf("expected ErrReferenceInFlight, got %v", err)
	}
	if err := g.MarkSuccess(ctx, "TX1"); err != nil {
		t.Fatalf("unexpected MarkSuccess error: %v", err)
	}
	if err := g.ReserveReference(ctx, "TX1"); !errors.Is(err, ErrReferenceUsed) {
		t.Fatalf("expected ErrReferenceUsed, got %v", err)
	}
	used, err := g.HasBeenUsed(ctx, "TX1")
	if err != nil || !used {
		t.Fatalf("expected TX1 to be used, got %v / %v", used, err)
	}
}

func TestIdempotencyRedisFailureReleases(t *testing.T) {
	ctx := context.Background()
	g, _ := newRedisGateway(t)

	g.ReserveReference(ctx, "TX2")
	if err := g.MarkFailure(ctx, "TX2"); err != nil {
		t.Fatalf("unexpected MarkFailure error: %v", err)
	}
	if err := g.ReserveReference(ctx, "TX2"); err != nil {
		t.Fatalf("expected released reference to be reservable, got %v", err)
	}
}

func TestIdempotencyRedisRetention(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGateway(t)

	g.ReserveReference(ctx, "TX3")
	g.MarkSuccess(ctx, "TX3")
	if ttl := mr.TTL(idempotencyKeyPrefix + "TX3"); ttl != time.Hour {
		t.Fatalf("expected committed reference TTL of 1h, got %s", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if used, _ := g.HasBeenUsed(ctx, "TX3"); used {
		t.Fatalf("expected reference to expire after the retention window")
	}
}

func TestIdempotencyRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGateway(t)
	mr.Close()

	if err := g.ReserveReference(ctx, "TX4"); err == nil {
		t.Fatalf("expected an error when redis is unavailable")
	}
}
