package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

func TestRoomStoreReservesAndReleasesCodes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewRoomStore(newClient(mr), time.Minute)

	room := app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil)
	if err := store.Reserve(ctx, room); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected redis key to be set")
	}
	if got, _ := mr.Get("quiz:room:ABC123"); got != "room-1" {
		t.Fatalf("expected reservation owned by room-1, got %q", got)
	}
	if ttl := mr.TTL("quiz:room:ABC123"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}
	if _, ok := store.Get(ctx, "ABC123"); !ok {
		t.Fatalf("expected room present")
	}

	store.Release(ctx, "ABC123")
	if mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get(ctx, "ABC123"); ok {
		t.Fatalf("expected room removed")
	}
}

func TestRoomStoreConflictAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	first := NewRoomStore(newClient(mr), time.Minute)
	second := NewRoomStore(newClient(mr), time.Minute)

	if err := first.Reserve(ctx, app.NewRoom("room-1", "ZZZ999", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	err = second.Reserve(ctx, app.NewRoom("room-2", "ZZZ999", domain.Quiz{Title: "t"}, nil))
	if !errors.Is(err, domain.ErrCodeConflict) {
		t.Fatalf("expected code conflict, got %v", err)
	}

	// Releasing an unknown code on the second instance must not drop the first reservation.
	second.Release(ctx, "ZZZ999")
	if !mr.Exists("quiz:room:ZZZ999") {
		t.Fatalf("expected reservation of first instance to survive")
	}
}

func TestRoomStoreRefreshKeepsLongRoomsReserved(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	first := NewRoomStore(newClient(mr), time.Minute)
	second := NewRoomStore(newClient(mr), time.Minute)

	if err := first.Reserve(ctx, app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Second)
		first.Refresh(ctx)
	}
	if ttl := mr.TTL("quiz:room:ABC123"); ttl != time.Minute {
		t.Fatalf("expected renewed ttl 1m, got %v", ttl)
	}

	err = second.Reserve(ctx, app.NewRoom("room-2", "ABC123", domain.Quiz{Title: "t"}, nil))
	if !errors.Is(err, domain.ErrCodeConflict) {
		t.Fatalf("expected code conflict while first room is live, got %v", err)
	}
}

func TestRoomStoreRefreshReclaimsExpiredCode(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewRoomStore(newClient(mr), time.Minute)
	if err := store.Reserve(ctx, app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected reservation to expire")
	}
	store.Refresh(ctx)
	if got, _ := mr.Get("quiz:room:ABC123"); got != "room-1" {
		t.Fatalf("expected reservation reclaimed by room-1, got %q", got)
	}
}

func TestRoomStoreReleaseKeepsForeignReservation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	first := NewRoomStore(newClient(mr), time.Minute)
	second := NewRoomStore(newClient(mr), time.Minute)

	if err := first.Reserve(ctx, app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve first: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := second.Reserve(ctx, app.NewRoom("room-2", "ABC123", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve second after expiry: %v", err)
	}

	first.Release(ctx, "ABC123")
	if got, _ := mr.Get("quiz:room:ABC123"); got != "room-2" {
		t.Fatalf("expected room-2 reservation to survive, got %q", got)
	}
	if first.Len() != 0 || second.Len() != 1 {
		t.Fatalf("unexpected live rooms first=%d second=%d", first.Len(), second.Len())
	}
}

func TestRoomStoreKeepAliveRenewsOnTicker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	store := NewRoomStore(newClient(mr), time.Minute, WithClock(clock))
	if err := store.Reserve(ctx, app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.KeepAlive(ctx)
	}()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("wait for ticker: %v", err)
	}

	mr.FastForward(40 * time.Second)
	clock.Advance(20 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL("quiz:room:ABC123") != time.Minute {
		if time.Now().After(deadline) {
			t.Fatalf("expected keepalive to renew ttl, got %v", mr.TTL("quiz:room:ABC123"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("keepalive did not stop on cancel")
	}
}

func TestRoomStoreReportsRedisErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	store := NewRoomStore(client, time.Minute)
	err = store.Reserve(context.Background(), app.NewRoom("room-1", "ABC123", domain.Quiz{Title: "t"}, nil))
	if err == nil || errors.Is(err, domain.ErrCodeConflict) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
