package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// RoomStore is an in-memory implementation of app.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) Reserve(_ context.Context, room *app.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code()]; ok {
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

func (s *RoomStore) Release(_ context.Context, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// Len reports how many rooms are live.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
