package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// releaseScript deletes a reservation only while it still names this room.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends a reservation this room owns, or reclaims it if it has
// expired and nobody else took the code. Returns 0 when the code is lost.
var renewScript = redis.NewScript(`
local owner = redis.call("GET", KEYS[1])
if owner == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if not owner and redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2], "NX") then
	return 1
end
return 0
`)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms live in process memory; only the join code is reserved in Redis
//     (SET NX with a TTL) so that codes stay unique across instances.
//   - KeepAlive must run for as long as rooms are served, otherwise
//     reservations of long rooms expire and their codes can be handed out again.
//   - Routing a code to the instance that owns it is left to the load balancer.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  clockwork.Clock

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

type Option func(*RoomStore)

// WithClock drives KeepAlive from the given clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *RoomStore) { s.clock = clock }
}

func NewRoomStore(client *redis.Client, ttl time.Duration, opts ...Option) *RoomStore {
	s := &RoomStore{
		client: client,
		ttl:    ttl,
		clock:  clockwork.NewRealClock(),
		rooms:  make(map[string]*app.Room),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoomStore) Reserve(ctx context.Context, room *app.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code()]; ok {
		return domain.ErrCodeConflict
	}
	ok, err := s.client.SetNX(ctx, s.key(room.Code()), room.ID(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve code %s: %w", room.Code(), err)
	}
	if !ok {
		return domain.ErrCodeConflict
	}
	s.rooms[room.Code()] = room
	return nil
}

func (s *RoomStore) Get(_ context.Context, code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Release(ctx context.Context, code string) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := releaseScript.Run(ctx, s.client, []string{s.key(code)}, room.ID()).Err(); err != nil {
		log.Warn().Err(err).Str("room", code).Msg("release code reservation")
	}
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Refresh renews the reservation of every room served here.
func (s *RoomStore) Refresh(ctx context.Context) {
	s.mu.RLock()
	owned := make(map[string]string, len(s.rooms))
	for code, room := range s.rooms {
		owned[code] = room.ID()
	}
	s.mu.RUnlock()

	for code, id := range owned {
		renewed, err := renewScript.Run(ctx, s.client, []string{s.key(code)}, id, s.ttl.Milliseconds()).Int()
		switch {
		case err != nil:
			log.Warn().Err(err).Str("room", code).Msg("renew code reservation")
		case renewed == 0:
			log.Error().Str("room", code).Msg("code reservation taken by another room")
		}
	}
}

// KeepAlive refreshes reservations at a third of the TTL until ctx is done.
func (s *RoomStore) KeepAlive(ctx context.Context) {
	interval := s.ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Refresh(ctx)
		}
	}
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}
