package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/domain"
)

const (
	codeAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultCodeLength   = 6
	defaultCodeAttempts = 5
)

// RoomRepository is the room directory: it maps join codes to live rooms (in-memory, Redis, etc).
type RoomRepository interface {
	// Reserve stores the room under its code or returns domain.ErrCodeConflict.
	Reserve(ctx context.Context, room *Room) error
	Get(ctx context.Context, code string) (*Room, bool)
	Release(ctx context.Context, code string)
	// Len reports how many rooms this instance is serving.
	Len() int
}

// RoomService contains the room lifecycle use cases the transport calls into.
type RoomService struct {
	rooms        RoomRepository
	clock        clockwork.Clock
	codeLength   int
	codeAttempts int
}

type Option func(*RoomService)

// WithClock overrides the clock driving room countdowns.
func WithClock(clock clockwork.Clock) Option {
	return func(s *RoomService) { s.clock = clock }
}

func WithCodeLength(n int) Option {
	return func(s *RoomService) {
		if n > 0 {
			s.codeLength = n
		}
	}
}

func WithCodeAttempts(n int) Option {
	return func(s *RoomService) {
		if n > 0 {
			s.codeAttempts = n
		}
	}
}

func NewRoomService(rooms RoomRepository, opts ...Option) *RoomService {
	s := &RoomService{
		rooms:        rooms,
		clock:        clockwork.NewRealClock(),
		codeLength:   defaultCodeLength,
		codeAttempts: defaultCodeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the quiz, reserves a fresh join code and attaches the host.
func (s *RoomService) Create(ctx context.Context, quiz domain.Quiz, host domain.Conn) (*Room, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		room := NewRoom(id, s.buildRoomCode(), quiz, s.clock)
		err := s.rooms.Reserve(ctx, room)
		if errors.Is(err, domain.ErrCodeConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserve room code: %w", err)
		}

		log.Info().Str("room", room.Code()).Str("room_id", id).Int("questions", len(quiz.Questions)).Msg("room created")
		room.AttachHost(host)
		return room, nil
	}
	return nil, domain.ErrRoomsUnavailable
}

// Join adds a player to the room behind code.
func (s *RoomService) Join(ctx context.Context, code, name string, conn domain.Conn) (*Room, string, error) {
	room, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, "", err
	}
	playerID, err := room.AddPlayer(name, conn)
	if err != nil {
		return nil, "", err
	}
	return room, playerID, nil
}

// Lookup resolves a user-entered join code.
func (s *RoomService) Lookup(ctx context.Context, code string) (*Room, error) {
	room, ok := s.rooms.Get(ctx, NormalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Close ends the room and frees its code.
func (s *RoomService) Close(ctx context.Context, code string) {
	code = NormalizeCode(code)
	if room, ok := s.rooms.Get(ctx, code); ok {
		room.End()
	}
	s.rooms.Release(ctx, code)
}

// LiveRooms reports the number of rooms served by this instance.
func (s *RoomService) LiveRooms() int {
	return s.rooms.Len()
}

// NormalizeCode makes join codes case-insensitive and whitespace tolerant.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *RoomService) buildRoomCode() string {
	var builder strings.Builder
	builder.Grow(s.codeLength)
	for range s.codeLength {
		builder.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return builder.String()
}
