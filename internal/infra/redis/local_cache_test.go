package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"tweet-quiz-service/internal/domain"
)

func TestLocalCacheIdentityRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewLocalCache(newClient(mr), "dev-1", time.Hour)

	got, err := cache.LoadIdentity(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty identity, got %+v err=%v", got, err)
	}

	want := domain.Identity{ID: "u1", DisplayName: "Alice", Email: "alice@example.com"}
	if err := cache.SaveIdentity(ctx, want); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if ttl := mr.TTL("device:dev-1:user"); ttl != time.Hour {
		t.Fatalf("expected identity ttl, got %v", ttl)
	}

	got, err = cache.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if *got != want {
		t.Fatalf("expected %+v, got %+v", want, *got)
	}

	if err := cache.ClearIdentity(ctx); err != nil {
		t.Fatalf("clear identity: %v", err)
	}
	if mr.Exists("device:dev-1:user") {
		t.Fatalf("expected identity key removed")
	}
}

func TestLocalCacheAggregatesAreDeviceAndUserScoped(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	a := NewLocalCache(client, "dev-a", 0)
	b := NewLocalCache(client, "dev-b", 0)

	agg := domain.NewUserAggregate().Fold(3, 2)
	if err := a.SaveAggregate(ctx, "u1", agg); err != nil {
		t.Fatalf("save aggregate: %v", err)
	}

	got, ok, err := a.LoadAggregate(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("load aggregate: ok=%v err=%v", ok, err)
	}
	if got.BestScore != 3 || got.GamesPlayed != 1 || got.BestStreak != 2 {
		t.Fatalf("unexpected aggregate %+v", got)
	}

	if _, ok, _ := a.LoadAggregate(ctx, "u2"); ok {
		t.Fatalf("expected no aggregate for other user")
	}
	if _, ok, _ := b.LoadAggregate(ctx, "u1"); ok {
		t.Fatalf("expected no aggregate on other device")
	}
}

func TestLocalCacheMalformedRecords(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewLocalCache(newClient(mr), "dev-1", 0)
	mr.Set("device:dev-1:user", "{not json")
	mr.Set("device:dev-1:data:u1", "[]")

	if _, err := cache.LoadIdentity(ctx); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed identity, got %v", err)
	}
	if _, _, err := cache.LoadAggregate(ctx, "u1"); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed aggregate, got %v", err)
	}
}
