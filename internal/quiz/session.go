package quiz

import (
	"maps"

	"github.com/p-n-ai/pai-quiz/internal/questionbank"
)

// State is the engine's position in the quiz lifecycle.
type State string

const (
	StateHome      State = "home"
	StateActive    State = "active"
	StateSummary   State = "summary"
	StateReviewing State = "reviewing"
)

// AnswerRecord is the first answer given to a question in a session.
type AnswerRecord struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
	IsCorrect      bool   `json:"isCorrect"`
}

// Session is one attempt at a subject. CurrentIndex always satisfies
// 0 <= CurrentIndex < len(Questions).
type Session struct {
	Subject        string
	Questions      []questionbank.Question
	CurrentIndex   int
	Answers        map[int]AnswerRecord
	Bookmarks      map[int]bool
	ElapsedSeconds int
	Running        bool
}

func newSession(subject string, questions []questionbank.Question, bookmarks map[int]bool) *Session {
	bm := make(map[int]bool, len(bookmarks))
	for idx, on := range bookmarks {
		if on && idx >= 0 && idx < len(questions) {
			bm[idx] = true
		}
	}
	return &Session{
		Subject:   subject,
		Questions: questions,
		Answers:   map[int]AnswerRecord{},
		Bookmarks: bm,
	}
}

func (s *Session) clone() Session {
	out := *s
	out.Answers = maps.Clone(s.Answers)
	out.Bookmarks = maps.Clone(s.Bookmarks)
	return out
}

func (s *Session) current() questionbank.Question {
	return s.Questions[s.CurrentIndex]
}

func (s *Session) last() int {
	return len(s.Questions) - 1
}
