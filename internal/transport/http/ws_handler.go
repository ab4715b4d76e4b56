package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

const sendBufferSize = 64

// Inbound message types.
const (
	typeHostCreate   = "host:create"
	typeHostStart    = "host:start"
	typeHostNext     = "host:next"
	typeHostEnd      = "host:end"
	typePlayerJoin   = "player:join"
	typePlayerAnswer = "player:answer"
)

type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type answerPayload struct {
	ChoiceIndex *int `json:"choiceIndex"`
}

type role int

const (
	roleNone role = iota
	roleHost
	rolePlayer
)

// session is the per-connection protocol state.
type session struct {
	room     *app.Room
	role     role
	playerID string
}

// client is the domain.Conn handed to rooms. Send enqueues without blocking;
// a single writer goroutine owns the socket.
type client struct {
	mu     sync.Mutex
	closed bool
	send   chan domain.Message
	remote string
}

func newClient(remote string) *client {
	return &client{send: make(chan domain.Message, sendBufferSize), remote: remote}
}

func (c *client) Send(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Warn().Str("remote", c.remote).Str("type", string(msg.Type)).Msg("send buffer full, dropping message")
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := newClient(r.RemoteAddr)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Str("remote", c.remote).Msg("ws write error")
				return
			}
		}
	}()

	var s session
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("remote", c.remote).Msg("ws read error")
			}
			break
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.Send(domain.ErrorMessage("malformed message"))
			continue
		}
		h.dispatch(r.Context(), c, &s, inbound)
	}

	// A departing host takes the room down with it; players simply go quiet.
	if s.role == roleHost {
		h.service.Close(context.Background(), s.room.Code())
	}
	c.close()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, s *session, inbound inboundMessage) {
	switch inbound.Type {
	case typeHostCreate:
		if s.room != nil {
			c.Send(domain.ErrorMessage("connection already belongs to a room"))
			return
		}
		var payload createPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.Send(domain.ErrorMessage("invalid create payload"))
			return
		}
		room, err := h.service.Create(ctx, domain.Quiz{Title: payload.Title, Questions: payload.Questions}, c)
		if err != nil {
			c.Send(domain.ErrorMessage(errorText(err)))
			return
		}
		s.room, s.role = room, roleHost

	case typePlayerJoin:
		if s.room != nil {
			c.Send(domain.ErrorMessage("connection already belongs to a room"))
			return
		}
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.Send(domain.ErrorMessage("invalid join payload"))
			return
		}
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			c.Send(domain.ErrorMessage("name is required"))
			return
		}
		room, playerID, err := h.service.Join(ctx, payload.Code, name, c)
		if err != nil {
			c.Send(domain.ErrorMessage(errorText(err)))
			return
		}
		s.room, s.role, s.playerID = room, rolePlayer, playerID

	case typeHostStart, typeHostNext, typeHostEnd:
		if s.role != roleHost {
			c.Send(domain.ErrorMessage("only the host can do that"))
			return
		}
		switch inbound.Type {
		case typeHostStart:
			s.room.Start()
		case typeHostNext:
			s.room.Next()
		case typeHostEnd:
			s.room.End()
		}

	case typePlayerAnswer:
		if s.role != rolePlayer {
			c.Send(domain.ErrorMessage("join a room first"))
			return
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.ChoiceIndex == nil {
			c.Send(domain.ErrorMessage("invalid answer payload"))
			return
		}
		s.room.SubmitAnswer(s.playerID, *payload.ChoiceIndex)

	default:
		c.Send(domain.ErrorMessage("unsupported message type"))
	}
}

// errorText hides internal failures from clients.
func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuiz),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrRoomClosed),
		errors.Is(err, domain.ErrRoomsUnavailable):
		return err.Error()
	}
	log.Error().Err(err).Msg("room request failed")
	return "internal error"
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
