package domain

// Phase is the high-level stage of a room.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseQuestion    Phase = "question"
	PhaseResults     Phase = "results"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseEnded       Phase = "ended"
)

// ChoicesPerQuestion is the fixed number of options every question carries.
const ChoicesPerQuestion = 4

// Question models an MCQ question; CorrectIndex is never sent to clients before results.
type Question struct {
	Text         string   `json:"text"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	TimerSec     int      `json:"timerSec"`
}

// PublicQuestion is a Question with the correct answer stripped.
type PublicQuestion struct {
	Text     string   `json:"text"`
	Choices  []string `json:"choices"`
	TimerSec int      `json:"timerSec"`
}

// Redacted returns the client-safe view of the question.
func (q Question) Redacted() PublicQuestion {
	choices := make([]string, len(q.Choices))
	copy(choices, q.Choices)
	return PublicQuestion{
		Text:     q.Text,
		Choices:  choices,
		TimerSec: q.TimerSec,
	}
}

// Quiz is the host-supplied title and ordered question list.
type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Ranking is one leaderboard row.
type Ranking struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RoomSnapshot is a read-only view of a room used for lookups.
type RoomSnapshot struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	Title         string   `json:"title"`
	Phase         Phase    `json:"phase"`
	Players       []string `json:"players"`
	QuestionIndex int      `json:"questionIndex"`
	QuestionCount int      `json:"questionCount"`
}
