package quiz

import "errors"

var (
	// ErrUnknownSubject is returned by Start for a subject with no questions.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrIndexOutOfRange is returned for a question or option position outside the set.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNoActiveSession is returned by operations that need a started quiz.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrNotCurrentQuestion is returned when answering a question other than the displayed one.
	ErrNotCurrentQuestion = errors.New("question is not the current question")
	// ErrReadOnly is returned when answering after the quiz was finished.
	ErrReadOnly = errors.New("quiz is read-only")
	// ErrInvalidState is returned when an operation does not apply to the engine state.
	ErrInvalidState = errors.New("operation not allowed in current state")
)
