package domain

import (
	"fmt"
	"strings"
)

// Validate checks host input before a room is created from it.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, question := range q.Questions {
		if err := question.validate(); err != nil {
			return fmt.Errorf("%w: question %d: %s", ErrInvalidQuiz, i+1, err)
		}
	}
	return nil
}

func (q Question) validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("text is empty")
	}
	if len(q.Choices) != ChoicesPerQuestion {
		return fmt.Errorf("expected %d choices, got %d", ChoicesPerQuestion, len(q.Choices))
	}
	for j, choice := range q.Choices {
		if strings.TrimSpace(choice) == "" {
			return fmt.Errorf("choice %d is empty", j+1)
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
		return fmt.Errorf("correct index %d out of range", q.CorrectIndex)
	}
	if q.TimerSec <= 0 {
		return fmt.Errorf("timer must be positive")
	}
	return nil
}
