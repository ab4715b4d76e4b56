package app

import (
	"math"
	"sort"

	"quiz-room-service/internal/domain"
)

const (
	basePoints  = 1000
	speedPoints = 500
)

// scoreFor returns the points for a correct answer given the seconds left.
// The reward decays linearly from 1500 (instant) to 1000 (at zero).
func scoreFor(remaining, timerSec int) int {
	if timerSec <= 0 {
		return basePoints
	}
	if remaining < 0 {
		remaining = 0
	}
	if remaining > timerSec {
		remaining = timerSec
	}
	return basePoints + int(math.Round(speedPoints*float64(remaining)/float64(timerSec)))
}

func questionMessage(q domain.Question, index, total int) domain.Message {
	return domain.Message{
		Type: domain.MessageQuestion,
		Payload: domain.QuestionPayload{
			Question: q.Redacted(),
			Index:    index,
			Total:    total,
		},
	}
}

// distribution counts answers per choice; out-of-range choices are never recorded.
func distribution(q domain.Question, answers map[string]int) []int {
	counts := make([]int, len(q.Choices))
	for _, choice := range answers {
		if choice >= 0 && choice < len(counts) {
			counts[choice]++
		}
	}
	return counts
}

func resultsMessage(q domain.Question, answers map[string]int, players []*player, scores map[string]int) domain.Message {
	named := make(map[string]int, len(players))
	for _, p := range players {
		named[p.name] = scores[p.id]
	}
	return domain.Message{
		Type: domain.MessageResults,
		Payload: domain.ResultsPayload{
			CorrectIndex: q.CorrectIndex,
			Distribution: distribution(q, answers),
			Scores:       named,
		},
	}
}

// rankings sorts players by score descending; ties keep join order.
func rankings(players []*player, scores map[string]int) []domain.Ranking {
	out := make([]domain.Ranking, 0, len(players))
	for _, p := range players {
		out = append(out, domain.Ranking{Name: p.name, Score: scores[p.id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
