package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
	"github.com/google/uuid"
)

const DefaultFetchDelay = 500 * time.Millisecond

// QuizSession is one attempt at a quiz, from the filter chosen on the setup
// screen to the final score.
type QuizSession struct {
	ID uuid.UUID

	filter   trivia.Filter
	source   QuestionSource
	delay    time.Duration
	logger   *slog.Logger
	onChange func(*QuizSession)

	mu          sync.Mutex
	rng         *rand.Rand
	phase       Phase
	batch       []trivia.Question
	current     int
	options     []string
	selected    string
	answered    bool
	score       int
	err         *Error
	fetching    bool
	fetched     bool
	closed      bool
	cancelFetch context.CancelFunc
}

type SessionOption func(*QuizSession)

func WithFetchDelay(d time.Duration) SessionOption {
	return func(s *QuizSession) { s.delay = d }
}

func WithRand(r *rand.Rand) SessionOption {
	return func(s *QuizSession) { s.rng = r }
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *QuizSession) { s.logger = l }
}

// WithOnChange registers fn to be called after every fetch attempt settles.
// fn runs on the fetch goroutine without the session lock held.
func WithOnChange(fn func(*QuizSession)) SessionOption {
	return func(s *QuizSession) { s.onChange = fn }
}

func NewQuizSession(filter trivia.Filter, source QuestionSource, opts ...SessionOption) *QuizSession {
	s := &QuizSession{
		ID:     uuid.New(),
		filter: filter,
		source: source,
		delay:  DefaultFetchDelay,
		phase:  PhaseLoading,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = newRand()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", s.ID.String())
	return s
}

func (s *QuizSession) Filter() trivia.Filter { return s.filter }

// Initialize schedules the question fetch after the fetch delay. It returns
// false without doing anything if a fetch is already pending, a fetch has
// already settled, or the session has been closed. Use Retry to fetch again
// after an error.
func (s *QuizSession) Initialize(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched || s.phase != PhaseLoading {
		s.logger.Debug("initialize ignored, session already fetched", "phase", s.phase.String())
		return false
	}
	return s.startLocked(ctx)
}

// Retry re-runs Initialize with the same filter. Only valid after an error.
func (s *QuizSession) Retry(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseError {
		return false
	}
	return s.startLocked(ctx)
}

func (s *QuizSession) startLocked(ctx context.Context) bool {
	if s.closed {
		return false
	}
	if s.fetching {
		s.logger.Debug("duplicate initialize ignored")
		return false
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetching = true
	s.cancelFetch = cancel
	s.phase = PhaseLoading
	s.err = nil

	go s.fetch(fetchCtx)
	return true
}

func (s *QuizSession) fetch(ctx context.Context) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.abandon()
		return
	case <-timer.C:
	}

	s.logger.Info("fetching questions",
		"category", s.filter.Category,
		"difficulty", string(s.filter.Difficulty))
	questions, err := s.source.Questions(ctx, s.filter, trivia.BatchSize)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// the request was cut short by the caller, not by teardown
		questions = nil
		err = fmt.Errorf("%w: %v", trivia.ErrNetwork, ctxErr)
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.fetching = false
	s.fetched = true
	s.cancelFetch = nil

	switch {
	case err != nil:
		s.phase = PhaseError
		s.err = classify(err)
		s.logger.Warn("question fetch failed", "kind", s.err.Kind.String(), "error", err)
	case len(questions) == 0:
		s.phase = PhaseError
		s.err = errEmptyBatch
		s.logger.Warn("question fetch returned an empty batch")
	default:
		s.batch = questions
		s.current = 0
		s.score = 0
		s.selected = ""
		s.answered = false
		s.phase = PhaseActive
		s.options = ShuffleOptions(s.rng, s.batch[0])
		s.logger.Info("quiz started", "questions", len(questions))
	}
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(s)
	}
}

// abandon releases the in-flight guard without touching any other state.
func (s *QuizSession) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fetching = false
	s.cancelFetch = nil
}

// SelectOption locks in an answer for the current question. The first answer
// is final: later calls return accepted=false and change nothing.
func (s *QuizSession) SelectOption(option string) (correct, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive || s.answered {
		return false, false
	}

	s.selected = option
	s.answered = true
	correct = option == s.batch[s.current].CorrectAnswer
	if correct {
		s.score++
	}
	return correct, true
}

// Advance moves to the next question, or finishes the quiz after the last
// one and returns the final result.
func (s *QuizSession) Advance() (Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return Result{}, false, ErrNotActive
	}
	if !s.answered {
		return Result{}, false, ErrNoAnswer
	}

	if s.current+1 < len(s.batch) {
		s.current++
		s.selected = ""
		s.answered = false
		s.options = ShuffleOptions(s.rng, s.batch[s.current])
		return Result{}, false, nil
	}

	s.phase = PhaseDone
	res := Result{Score: s.score, Total: trivia.BatchSize}
	s.logger.Info("quiz finished", "score", res.Score, "total", res.Total)
	return res, true, nil
}

// Close tears the session down. A pending fetch is cancelled and its result,
// if any, is discarded.
func (s *QuizSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
}

func (s *QuizSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// OptionStates reports how each option of the current question should be
// highlighted.
func (s *QuizSession) OptionStates() []OptionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optionStatesLocked()
}

func (s *QuizSession) optionStatesLocked() []OptionView {
	if s.phase != PhaseActive && s.phase != PhaseDone {
		return nil
	}
	correct := s.batch[s.current].CorrectAnswer
	views := make([]OptionView, len(s.options))
	for i, opt := range s.options {
		views[i] = OptionView{Text: opt}
		if !s.answered {
			continue
		}
		switch {
		case opt == correct:
			views[i].State = OptionCorrect
		case opt == s.selected:
			views[i].State = OptionIncorrect
		}
	}
	return views
}

func (s *QuizSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:    s.phase,
		Filter:   s.filter,
		Index:    s.current,
		Total:    len(s.batch),
		Selected: s.selected,
		Answered: s.answered,
		Score:    s.score,
		Err:      s.err,
		Options:  s.optionStatesLocked(),
	}
	if len(s.batch) > 0 && (s.phase == PhaseActive || s.phase == PhaseDone) {
		q := s.batch[s.current]
		q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
		snap.Question = &q
	}
	return snap
}
