package service

import (
	"errors"
	"fmt"

	"github.com/PoluyanbIch/quizwhiz/internal/trivia"
)

type ErrorKind int

const (
	KindRateLimited ErrorKind = iota + 1
	KindNoQuestions
	KindNetworkFailure
	KindMissingSessionInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNoQuestions:
		return "no_questions"
	case KindNetworkFailure:
		return "network_failure"
	case KindMissingSessionInput:
		return "missing_session_input"
	}
	return "unknown"
}

// Recovery is the action offered to the user for an error.
type Recovery int

const (
	RecoveryRetry Recovery = iota
	RecoveryReturnToSetup
)

type Error struct {
	Kind     ErrorKind
	Recovery Recovery
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the text shown to the user.
func (e *Error) Message() string {
	switch e.Kind {
	case KindRateLimited:
		return "Too many requests to the trivia service. Please wait a few seconds and try again."
	case KindNoQuestions:
		if e.Recovery == RecoveryReturnToSetup {
			return "No questions found. Please try again with different options."
		}
		return "The trivia service has no questions for these options right now."
	case KindNetworkFailure:
		return "Could not load the quiz. Check your connection and try again."
	case KindMissingSessionInput:
		return "Quiz options not found. Please start from the main menu."
	}
	return "Something went wrong."
}

var (
	ErrMissingSessionInput = &Error{Kind: KindMissingSessionInput, Recovery: RecoveryReturnToSetup}
	errEmptyBatch          = &Error{Kind: KindNoQuestions, Recovery: RecoveryReturnToSetup}
)

func classify(err error) *Error {
	switch {
	case errors.Is(err, trivia.ErrRateLimited):
		return &Error{Kind: KindRateLimited, Recovery: RecoveryRetry, Err: err}
	case errors.Is(err, trivia.ErrNoResults):
		return &Error{Kind: KindNoQuestions, Recovery: RecoveryRetry, Err: err}
	default:
		return &Error{Kind: KindNetworkFailure, Recovery: RecoveryRetry, Err: err}
	}
}
