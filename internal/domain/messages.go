package domain

// MessageType names an outbound message.
type MessageType string

const (
	MessageSync        MessageType = "sync"
	MessageJoined      MessageType = "joined"
	MessageQuestion    MessageType = "question"
	MessageTick        MessageType = "tick"
	MessageResults     MessageType = "results"
	MessageLeaderboard MessageType = "leaderboard"
	MessageEnded       MessageType = "ended"
	MessageError       MessageType = "error"
)

// Message is an outbound protocol message; the transport decides how to encode it.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// Conn is an opaque per-connection handle owned by the transport.
// Send must not block: delivery is best-effort and failures stay with the transport.
type Conn interface {
	Send(msg Message)
}

type SyncPayload struct {
	Code  string `json:"code"`
	Phase Phase  `json:"phase"`
}

type JoinedPayload struct {
	PlayerID string   `json:"playerId"`
	Players  []string `json:"players"`
}

type QuestionPayload struct {
	Question PublicQuestion `json:"question"`
	Index    int            `json:"index"`
	Total    int            `json:"total"`
}

type TickPayload struct {
	Remaining int `json:"remaining"`
}

type ResultsPayload struct {
	CorrectIndex int            `json:"correctIndex"`
	Distribution []int          `json:"distribution"`
	Scores       map[string]int `json:"scores"`
}

type LeaderboardPayload struct {
	Rankings []Ranking `json:"rankings"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorMessage builds the error message sent to a single originating connection.
func ErrorMessage(text string) Message {
	return Message{Type: MessageError, Payload: ErrorPayload{Message: text}}
}
