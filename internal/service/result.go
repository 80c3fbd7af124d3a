package service

import "math"

// Result is handed from the quiz screen to the result screen. Total is always
// the fixed batch size.
type Result struct {
	Score int
	Total int
}

func (r Result) Percentage() int {
	if r.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(r.Score) / float64(r.Total) * 100))
}

func (r Result) Feedback() string {
	p := r.Percentage()
	switch {
	case p == 100:
		return "🔥 Perfect Score! You're a genius!"
	case p >= 70:
		return "👏 Great Job! Keep practicing."
	default:
		return "💡 Don't worry, you'll get better!"
	}
}
