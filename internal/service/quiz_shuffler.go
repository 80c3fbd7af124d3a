package service

import (
	"math/rand/v2"

	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// ShuffleOptions returns the correct answer together with the incorrect ones
// in random order. The question itself is not modified.
func ShuffleOptions(r *rand.Rand, q trivia.Question) []string {
	options := make([]string, 0, 1+len(q.IncorrectAnswers))
	options = append(options, q.CorrectAnswer)
	options = append(options, q.IncorrectAnswers...)

	// Fisher-Yates
	for i := len(options) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		options[i], options[j] = options[j], options[i]
	}

	return options
}
