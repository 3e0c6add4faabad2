// Package quiz implements the multiple-choice quiz engine: one active session
// per engine, one-shot answers, bookmarks, a per-second clock, and durable
// per-subject progress written after every mutation.
package quiz

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/questionbank"
)

const defaultTickInterval = time.Second

// QuestionSource supplies the immutable subject → questions mapping.
type QuestionSource interface {
	Questions(subject string) ([]questionbank.Question, bool)
	Search(filter string) []string
}

// ProgressStore is the durable progress the engine reads at start and writes
// after every answer, bookmark and reset.
type ProgressStore interface {
	Ensure(subject string) progress.Record
	Get(subject string) (progress.Record, bool)
	RecordAnswer(subject string, questionIndex int, isCorrect bool) error
	ToggleBookmark(subject string, questionIndex int) (bool, error)
	Reset(subject string) error
}

// EngineConfig holds dependencies for the quiz engine.
type EngineConfig struct {
	Questions    QuestionSource
	Store        ProgressStore
	Presenter    Presenter
	Events       EventLogger
	TickInterval time.Duration              // clock resolution (default 1s)
	NewTicker    func(time.Duration) Ticker // defaults to NewTicker
}

// Score is the snapshot taken by Finish.
type Score struct {
	Subject        string `json:"subject"`
	TotalQuestions int    `json:"totalQuestions"`
	Attempted      int    `json:"attempted"`
	Correct        int    `json:"correct"`
	Incorrect      int    `json:"incorrect"`
	Percentage     int    `json:"percentage"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	ElapsedLabel   string `json:"elapsedLabel"`
}

// SubjectCard describes a subject on the home screen.
type SubjectCard struct {
	Name      string  `json:"name"`
	ShortCode string  `json:"shortCode"`
	Total     int     `json:"total"`
	Stats     Stats   `json:"stats"`
	Summary   Summary `json:"summary"`
	Bookmarks int     `json:"bookmarks"`
}

type clock struct {
	ticker Ticker
	done   chan struct{}
	gen    uint64
}

// Engine owns the active session. All methods are safe for concurrent use and
// are applied one at a time.
type Engine struct {
	questions    QuestionSource
	store        ProgressStore
	presenter    Presenter
	events       EventLogger
	tickInterval time.Duration
	newTicker    func(time.Duration) Ticker

	mu      sync.Mutex
	state   State
	session *Session
	score   *Score
	clock   *clock
	gen     uint64
}

// NewEngine creates an engine in the home state.
func NewEngine(cfg EngineConfig) *Engine {
	questions := cfg.Questions
	if questions == nil {
		questions = questionbank.Empty()
	}
	store := cfg.Store
	if store == nil {
		store = progress.NewStore(progress.NewMemoryBackend())
	}
	presenter := cfg.Presenter
	if presenter == nil {
		presenter = NopPresenter{}
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &Engine{
		questions:    questions,
		store:        store,
		presenter:    presenter,
		events:       events,
		tickInterval: interval,
		newTicker:    newTicker,
		state:        StateHome,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a copy of the active session.
func (e *Engine) Session() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return e.session.clone(), true
}

// Start begins a fresh attempt at subject. An unknown or empty subject leaves
// any current session untouched.
func (e *Engine) Start(subject string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	questions, ok := e.questions.Questions(subject)
	if !ok || len(questions) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subject)
	}

	// A previous clock must never survive a restart.
	e.stopClockLocked()

	rec := e.store.Ensure(subject)
	e.session = newSession(subject, questions, rec.Bookmarks)
	e.score = nil
	e.state = StateActive
	e.startClockLocked()

	slog.Info("quiz started", "subject", subject, "questions", len(questions))
	e.logEventLocked(EventQuizStarted, map[string]any{"questions": len(questions)})
	e.presentLocked()
	return nil
}

// Answer records selectedOption for questionIndex, which must be the current
// question. Only the first answer counts; later calls return it unchanged.
func (e *Engine) Answer(questionIndex int, selectedOption string) (AnswerRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.answerLocked(questionIndex, selectedOption)
}

// AnswerOption answers the current question with the option at a 1-based
// position, the keyboard shortcut of the quiz screen.
func (e *Engine) AnswerOption(position int) (AnswerRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return AnswerRecord{}, ErrNoActiveSession
	}
	opts := e.session.current().Options
	if position < 1 || position > len(opts) {
		return AnswerRecord{}, fmt.Errorf("%w: option %d of %d", ErrIndexOutOfRange, position, len(opts))
	}
	return e.answerLocked(e.session.CurrentIndex, opts[position-1])
}

func (e *Engine) answerLocked(questionIndex int, selectedOption string) (AnswerRecord, error) {
	s := e.session
	if s == nil {
		return AnswerRecord{}, ErrNoActiveSession
	}
	if e.state != StateActive {
		return AnswerRecord{}, fmt.Errorf("%w: state %s", ErrReadOnly, e.state)
	}
	if questionIndex != s.CurrentIndex {
		return AnswerRecord{}, fmt.Errorf("%w: got %d, current %d", ErrNotCurrentQuestion, questionIndex, s.CurrentIndex)
	}
	if rec, ok := s.Answers[questionIndex]; ok {
		return rec, nil
	}

	rec := AnswerRecord{
		QuestionIndex:  questionIndex,
		SelectedOption: selectedOption,
		IsCorrect:      s.current().IsCorrect(selectedOption),
	}
	s.Answers[questionIndex] = rec

	if err := e.store.RecordAnswer(s.Subject, questionIndex, rec.IsCorrect); err != nil {
		slog.Warn("answer not persisted", "subject", s.Subject, "question_index", questionIndex, "error", err)
	}

	e.logEventLocked(EventAnswerRecorded, map[string]any{
		"question_index": questionIndex,
		"correct":        rec.IsCorrect,
	})
	e.presentLocked()
	return rec, nil
}

// GoTo moves to questionIndex.
func (e *Engine) GoTo(questionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.navigableLocked(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex > e.session.last() {
		return fmt.Errorf("%w: question %d of %d", ErrIndexOutOfRange, questionIndex, len(e.session.Questions))
	}
	e.moveLocked(questionIndex)
	return nil
}

// Next moves forward one question; it does nothing on the last one.
func (e *Engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.navigableLocked(); err != nil {
		return err
	}
	if e.session.CurrentIndex < e.session.last() {
		e.moveLocked(e.session.CurrentIndex + 1)
	}
	return nil
}

// Previous moves back one question; it does nothing on the first one.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.navigableLocked(); err != nil {
		return err
	}
	if e.session.CurrentIndex > 0 {
		e.moveLocked(e.session.CurrentIndex - 1)
	}
	return nil
}

func (e *Engine) navigableLocked() error {
	if e.session == nil {
		return ErrNoActiveSession
	}
	if e.state == StateSummary {
		return fmt.Errorf("%w: state %s", ErrInvalidState, e.state)
	}
	return nil
}

func (e *Engine) moveLocked(idx int) {
	e.session.CurrentIndex = idx
	e.presentLocked()
}

// ToggleBookmark flips the bookmark on the current question and returns the
// new state.
func (e *Engine) ToggleBookmark() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil {
		return false, ErrNoActiveSession
	}

	idx := s.CurrentIndex
	on, err := e.store.ToggleBookmark(s.Subject, idx)
	if err != nil {
		slog.Warn("bookmark not persisted", "subject", s.Subject, "question_index", idx, "error", err)
	}
	if on {
		s.Bookmarks[idx] = true
	} else {
		delete(s.Bookmarks, idx)
	}

	e.logEventLocked(EventBookmarkToggled, map[string]any{
		"question_index": idx,
		"bookmarked":     on,
	})
	e.presentLocked()
	return on, nil
}

// RevealAnswer returns the correct option of the current question.
func (e *Engine) RevealAnswer() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return "", ErrNoActiveSession
	}
	return e.session.current().Answer, nil
}

// Finish stops the clock and scores the attempt. Persisted progress is kept.
func (e *Engine) Finish() (Score, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return Score{}, ErrNoActiveSession
	}
	if e.state != StateActive {
		return Score{}, fmt.Errorf("%w: state %s", ErrInvalidState, e.state)
	}

	e.stopClockLocked()

	s := e.session
	live := LiveStats(s)
	score := Score{
		Subject:        s.Subject,
		TotalQuestions: len(s.Questions),
		Attempted:      live.Attempted,
		Correct:        live.Correct,
		Incorrect:      live.Incorrect,
		Percentage:     Percent(live.Correct, len(s.Questions)),
		ElapsedSeconds: s.ElapsedSeconds,
		ElapsedLabel:   FormatElapsed(s.ElapsedSeconds),
	}
	e.score = &score
	e.state = StateSummary

	slog.Info("quiz finished",
		"subject", s.Subject,
		"percentage", score.Percentage,
		"elapsed_seconds", score.ElapsedSeconds,
	)
	e.logEventLocked(EventQuizFinished, map[string]any{
		"attempted":       score.Attempted,
		"correct":         score.Correct,
		"percentage":      score.Percentage,
		"elapsed_seconds": score.ElapsedSeconds,
	})
	e.presentLocked()
	return score, nil
}

// Review replays a finished attempt read-only from the first question.
func (e *Engine) Review() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return ErrNoActiveSession
	}
	if e.state != StateSummary {
		return fmt.Errorf("%w: state %s", ErrInvalidState, e.state)
	}
	e.state = StateReviewing
	e.session.CurrentIndex = 0
	e.presentLocked()
	return nil
}

// Restart clears the session's answers and clock and begins again on the
// same subject. Bookmarks and persisted progress are kept.
func (e *Engine) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil {
		return ErrNoActiveSession
	}

	e.stopClockLocked()
	s.Answers = map[int]AnswerRecord{}
	s.CurrentIndex = 0
	s.ElapsedSeconds = 0
	e.score = nil
	e.state = StateActive
	e.startClockLocked()

	e.logEventLocked(EventQuizRestarted, nil)
	e.presentLocked()
	return nil
}

// ResetSubjectProgress deletes the subject's persisted progress. If it is the
// active subject, the session's answers and bookmarks are cleared as well; a
// finished attempt of that subject is discarded and the engine returns home.
// Asking the learner for confirmation is the caller's job.
func (e *Engine) ResetSubjectProgress(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(subject); err != nil {
		slog.Warn("progress reset not persisted", "subject", subject, "error", err)
	}

	if s := e.session; s != nil && s.Subject == subject {
		if e.state == StateActive {
			s.Answers = map[int]AnswerRecord{}
			s.Bookmarks = map[int]bool{}
		} else {
			// A finished attempt's score and review no longer match the
			// stored progress.
			e.stopClockLocked()
			e.session = nil
			e.score = nil
			e.state = StateHome
		}
	}

	slog.Info("progress reset", "subject", subject)
	if err := e.events.LogEvent(Event{Subject: subject, EventType: EventProgressReset}); err != nil {
		slog.Warn("failed to log event", "type", EventProgressReset, "error", err)
	}
	e.presentLocked()
}

// GoBackHome stops the clock and discards the session.
func (e *Engine) GoBackHome() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil && e.state == StateActive {
		e.logEventLocked(EventQuizAbandoned, map[string]any{"answered": len(e.session.Answers)})
	}
	e.stopClockLocked()
	e.session = nil
	e.score = nil
	e.state = StateHome
	e.presentLocked()
}

// Close stops the clock. The engine stays usable.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopClockLocked()
}

// Elapsed returns the session clock in seconds.
func (e *Engine) Elapsed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return 0
	}
	return e.session.ElapsedSeconds
}

// LiveStats returns the active session's statistics.
func (e *Engine) LiveStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return LiveStats(e.session)
}

// Subjects lists subjects matching filter with their persisted figures.
func (e *Engine) Subjects(filter string) []SubjectCard {
	names := e.questions.Search(filter)
	cards := make([]SubjectCard, 0, len(names))
	for _, name := range names {
		qs, _ := e.questions.Questions(name)
		rec, _ := e.store.Get(name)
		cards = append(cards, SubjectCard{
			Name:      name,
			ShortCode: ShortCode(name),
			Total:     len(qs),
			Stats:     StoredStats(rec),
			Summary:   SubjectSummary(rec, len(qs)),
			Bookmarks: len(rec.Bookmarks),
		})
	}
	return cards
}

// View returns the current presentation snapshot.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	v := View{State: e.state, Score: e.score}
	s := e.session
	if s == nil {
		v.ElapsedLabel = FormatElapsed(0)
		return v
	}

	rec, _ := e.store.Get(s.Subject)
	q := s.current()
	total := len(s.Questions)

	v.Subject = s.Subject
	v.ShortCode = ShortCode(s.Subject)
	v.CurrentIndex = s.CurrentIndex
	v.Total = total
	v.Position = Percent(s.CurrentIndex+1, total)
	v.Question = &QuestionView{Text: q.Text, Options: append([]string(nil), q.Options...)}
	if a, ok := s.Answers[s.CurrentIndex]; ok {
		v.Answer = &a
		v.CorrectOption = q.Answer
	}
	if e.state == StateReviewing {
		v.CorrectOption = q.Answer
	}
	v.Bookmarked = s.Bookmarks[s.CurrentIndex]
	v.BookmarkCount = len(s.Bookmarks)
	v.CanPrevious = s.CurrentIndex > 0
	v.CanNext = s.CurrentIndex < s.last()
	v.Live = LiveStats(s)
	v.Stored = StoredStats(rec)
	v.Summary = SubjectSummary(rec, total)
	v.Elapsed = s.ElapsedSeconds
	v.ElapsedLabel = FormatElapsed(s.ElapsedSeconds)
	v.Grid = NavGrid(s, rec)
	return v
}

func (e *Engine) presentLocked() {
	e.presenter.Present(e.viewLocked())
}

func (e *Engine) logEventLocked(eventType string, data map[string]any) {
	if e.session == nil {
		return
	}
	if err := e.events.LogEvent(Event{
		Subject:   e.session.Subject,
		EventType: eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}

func (e *Engine) startClockLocked() {
	e.gen++
	c := &clock{
		ticker: e.newTicker(e.tickInterval),
		done:   make(chan struct{}),
		gen:    e.gen,
	}
	e.clock = c
	e.session.Running = true
	go e.runClock(c)
}

// stopClockLocked is idempotent.
func (e *Engine) stopClockLocked() {
	if e.clock == nil {
		return
	}
	close(e.clock.done)
	e.clock.ticker.Stop()
	e.clock = nil
	if e.session != nil {
		e.session.Running = false
	}
}

func (e *Engine) runClock(c *clock) {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C():
			e.tick(c.gen)
		}
	}
}

// tick advances the clock of generation gen; ticks from a stopped clock are
// dropped.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock == nil || e.clock.gen != gen || e.session == nil {
		return
	}
	e.session.ElapsedSeconds++
	e.presenter.Tick(e.session.ElapsedSeconds)
}
