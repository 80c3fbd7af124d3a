package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// FileProvider serves questions from a local JSON file shaped like the
// OpenTDB responses:
//
//	{"trivia_categories": [{"id": 9, "name": "General Knowledge"}],
//	 "results": [{"category": "General Knowledge", "difficulty": "easy", ...}]}
type FileProvider struct {
	categories []Category
	questions  []Question
}

type questionFile struct {
	TriviaCategories []Category `json:"trivia_categories"`
	Results          []Question `json:"results"`
}

func LoadFile(filename string) (*FileProvider, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileProvider, error) {
	var f questionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}

	questions := make([]Question, 0, len(f.Results))
	for i, q := range f.Results {
		if !q.valid() {
			return nil, fmt.Errorf("question %d: text, correct_answer and incorrect_answers are required", i)
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions found in file")
	}

	return &FileProvider{categories: f.TriviaCategories, questions: questions}, nil
}

func (p *FileProvider) Categories(ctx context.Context) ([]Category, error) {
	out := make([]Category, len(p.categories))
	copy(out, p.categories)
	return out, nil
}

// Questions returns up to amount random questions matching filter, in the
// same response-code semantics as the HTTP API: nothing matching is
// ErrNoResults.
func (p *FileProvider) Questions(ctx context.Context, filter Filter, amount int) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	categoryName := ""
	if filter.Category != 0 {
		for _, c := range p.categories {
			if c.ID == filter.Category {
				categoryName = c.Name
				break
			}
		}
		if categoryName == "" {
			return nil, ErrNoResults
		}
	}

	var matching []Question
	for _, q := range p.questions {
		if categoryName != "" && q.Category != categoryName {
			continue
		}
		if filter.Difficulty != DifficultyAny && !strings.EqualFold(q.Difficulty, string(filter.Difficulty)) {
			continue
		}
		matching = append(matching, q)
	}
	if len(matching) == 0 {
		return nil, ErrNoResults
	}

	if amount <= 0 || amount > len(matching) {
		amount = len(matching)
	}
	out := make([]Question, 0, amount)
	for _, i := range rand.Perm(len(matching))[:amount] {
		out = append(out, matching[i])
	}
	return out, nil
}
