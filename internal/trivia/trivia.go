// Package trivia talks to the Open Trivia Database and to offline question
// files laid out the same way.
package trivia

import (
	"context"
	"errors"
)

// BatchSize is the number of questions requested per quiz.
const BatchSize = 10

var (
	ErrRateLimited = errors.New("trivia: rate limited")
	ErrNoResults   = errors.New("trivia: no results")
	ErrMalformed   = errors.New("trivia: malformed response")
	ErrNetwork     = errors.New("trivia: request failed")
)

type Difficulty string

const (
	DifficultyAny    Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyAny, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Filter narrows a question request. Zero fields mean "any".
type Filter struct {
	Category   int
	Difficulty Difficulty
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Question fields are HTML-escaped exactly as the provider sends them.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (q Question) valid() bool {
	return q.Text != "" && q.CorrectAnswer != "" && q.IncorrectAnswers != nil
}

type Provider interface {
	Categories(ctx context.Context) ([]Category, error)
	Questions(ctx context.Context, filter Filter, amount int) ([]Question, error)
}

const (
	codeSuccess     = 0
	codeNoResults   = 1
	codeRateLimited = 5
)

type questionsResponse struct {
	ResponseCode *int       `json:"response_code"`
	Results      []Question `json:"results"`
}

type categoriesResponse struct {
	TriviaCategories []Category `json:"trivia_categories"`
}
