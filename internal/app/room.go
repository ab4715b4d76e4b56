package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/domain"
)

type player struct {
	id   string
	name string
	conn domain.Conn
}

// Room is one quiz session. Every mutation, including countdown pulses, runs
// under mu, and outbound messages are queued while it is held so that all
// observers see phases in the same order.
type Room struct {
	id        string
	code      string
	title     string
	questions []domain.Question
	clock     clockwork.Clock
	interval  time.Duration

	mu        sync.RWMutex
	phase     domain.Phase
	host      domain.Conn
	players   []*player
	byID      map[string]*player
	index     int
	answers   map[string]int
	scores    map[string]int
	remaining int
	countdown *countdown
}

// NewRoom builds a lobby-phase room. The quiz is copied and never mutated afterwards.
func NewRoom(id, code string, quiz domain.Quiz, clock clockwork.Clock) *Room {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Choices = append([]string(nil), q.Choices...)
		questions[i] = q
	}
	return &Room{
		id:        id,
		code:      code,
		title:     quiz.Title,
		questions: questions,
		clock:     clock,
		interval:  tickInterval,
		phase:     domain.PhaseLobby,
		byID:      make(map[string]*player),
		index:     -1,
		answers:   make(map[string]int),
		scores:    make(map[string]int),
	}
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Code() string { return r.code }

// Phase reports the current phase.
func (r *Room) Phase() domain.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Snapshot returns a read-only view for lookups.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.RoomSnapshot{
		ID:            r.id,
		Code:          r.code,
		Title:         r.title,
		Phase:         r.phase,
		Players:       r.playerNamesLocked(),
		QuestionIndex: r.index,
		QuestionCount: len(r.questions),
	}
}

// AttachHost sets the presenter connection and sends it the current phase.
func (r *Room) AttachHost(conn domain.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = conn
	conn.Send(r.syncMessageLocked())
}

// AddPlayer registers a player with a zero score and broadcasts the player list.
// Names are not required to be unique.
func (r *Room) AddPlayer(name string, conn domain.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == domain.PhaseEnded {
		return "", domain.ErrRoomClosed
	}

	p := &player{id: uuid.NewString(), name: name, conn: conn}
	r.players = append(r.players, p)
	r.byID[p.id] = p
	r.scores[p.id] = 0

	log.Debug().Str("room", r.code).Str("player_id", p.id).Str("name", name).Msg("player joined")

	r.broadcastLocked(domain.Message{
		Type: domain.MessageJoined,
		Payload: domain.JoinedPayload{
			PlayerID: p.id,
			Players:  r.playerNamesLocked(),
		},
	})
	conn.Send(r.syncMessageLocked())
	return p.id, nil
}

// Start moves a lobby with at least one player to the first question.
// Anything else is ignored.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != domain.PhaseLobby || len(r.players) == 0 {
		return
	}
	log.Info().Str("room", r.code).Int("players", len(r.players)).Msg("quiz started")
	r.advanceQuestionLocked()
}

// Next advances from results to the following question or the leaderboard.
func (r *Room) Next() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != domain.PhaseResults {
		return
	}
	r.advanceQuestionLocked()
}

// SubmitAnswer records a player's first answer for the live question.
// Late, duplicate, unknown-player and out-of-range answers are dropped.
func (r *Room) SubmitAnswer(playerID string, choiceIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != domain.PhaseQuestion {
		return
	}
	if _, ok := r.byID[playerID]; !ok {
		return
	}
	if _, answered := r.answers[playerID]; answered {
		return
	}
	question := r.questions[r.index]
	if choiceIndex < 0 || choiceIndex >= len(question.Choices) {
		return
	}

	r.answers[playerID] = choiceIndex
	if choiceIndex == question.CorrectIndex {
		r.scores[playerID] += scoreFor(r.remaining, question.TimerSec)
	}

	if len(r.answers) == len(r.players) {
		r.finishQuestionLocked()
	}
}

// End terminates the room from any phase.
func (r *Room) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == domain.PhaseEnded {
		return
	}
	r.cancelCountdownLocked()
	r.phase = domain.PhaseEnded
	log.Info().Str("room", r.code).Msg("room ended")
	r.broadcastLocked(domain.Message{Type: domain.MessageEnded})
}

func (r *Room) advanceQuestionLocked() {
	r.cancelCountdownLocked()
	r.index++

	if r.index >= len(r.questions) {
		r.phase = domain.PhaseLeaderboard
		log.Info().Str("room", r.code).Msg("leaderboard")
		r.broadcastLocked(domain.Message{
			Type:    domain.MessageLeaderboard,
			Payload: domain.LeaderboardPayload{Rankings: rankings(r.players, r.scores)},
		})
		return
	}

	question := r.questions[r.index]
	clear(r.answers)
	r.phase = domain.PhaseQuestion
	r.remaining = question.TimerSec

	log.Debug().Str("room", r.code).Int("question", r.index).Int("timer_sec", question.TimerSec).Msg("question started")
	r.broadcastLocked(questionMessage(question, r.index, len(r.questions)))
	r.countdown = startCountdown(r.clock, r.interval, r.pulse)
}

// pulse is called by the countdown goroutine once per interval.
// It returns false when the countdown should stop.
func (r *Room) pulse(cd *countdown) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cd != r.countdown || cd.stopped() || r.phase != domain.PhaseQuestion {
		return false
	}
	if r.remaining > 0 {
		r.remaining--
	}
	r.broadcastLocked(domain.Message{
		Type:    domain.MessageTick,
		Payload: domain.TickPayload{Remaining: r.remaining},
	})
	if r.remaining <= 0 {
		r.finishQuestionLocked()
		return false
	}
	return true
}

// finishQuestionLocked is the single exit from the question phase, shared by
// countdown expiry and the all-answered fast path. The phase flips before any
// message is sent, so a second caller sees results and returns.
func (r *Room) finishQuestionLocked() {
	if r.phase != domain.PhaseQuestion {
		return
	}
	r.phase = domain.PhaseResults
	r.cancelCountdownLocked()

	log.Debug().Str("room", r.code).Int("question", r.index).Int("answers", len(r.answers)).Msg("question finished")
	r.broadcastLocked(resultsMessage(r.questions[r.index], r.answers, r.players, r.scores))
}

func (r *Room) cancelCountdownLocked() {
	r.countdown.Stop()
	r.countdown = nil
}

func (r *Room) broadcastLocked(msg domain.Message) {
	if r.host != nil {
		r.host.Send(msg)
	}
	for _, p := range r.players {
		p.conn.Send(msg)
	}
}

func (r *Room) playerNamesLocked() []string {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.name)
	}
	return names
}

func (r *Room) syncMessageLocked() domain.Message {
	return domain.Message{
		Type:    domain.MessageSync,
		Payload: domain.SyncPayload{Code: r.code, Phase: r.phase},
	}
}
