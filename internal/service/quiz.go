package service

import (
	"context"
	"errors"

	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseError
	PhaseActive
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseActive:
		return "active"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// OptionState is how an answer button is highlighted.
type OptionState int

const (
	OptionNeutral OptionState = iota
	OptionCorrect
	OptionIncorrect
)

type OptionView struct {
	Text  string
	State OptionState
}

// QuestionSource is the part of a trivia provider a session needs.
type QuestionSource interface {
	Questions(ctx context.Context, filter trivia.Filter, amount int) ([]trivia.Question, error)
}

var (
	ErrNotActive = errors.New("quiz is not in progress")
	ErrNoAnswer  = errors.New("no answer selected for the current question")
)

// Snapshot is a point-in-time copy of a session for rendering.
type Snapshot struct {
	Phase    Phase
	Filter   trivia.Filter
	Index    int
	Total    int
	Question *trivia.Question
	Options  []OptionView
	Selected string
	Answered bool
	Score    int
	Err      *Error
}
