package quiz

import "sync"

// QuestionView is the displayed question.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View is everything a front-end needs to draw the quiz screen.
type View struct {
	State         State         `json:"state"`
	Subject       string        `json:"subject,omitempty"`
	ShortCode     string        `json:"shortCode,omitempty"`
	CurrentIndex  int           `json:"currentIndex"`
	Total         int           `json:"total"`
	Position      int           `json:"position"` // percent through the set
	Question      *QuestionView `json:"question,omitempty"`
	Answer        *AnswerRecord `json:"answer,omitempty"`
	CorrectOption string        `json:"correctOption,omitempty"` // set once answered, or while reviewing
	Bookmarked    bool          `json:"bookmarked"`
	BookmarkCount int           `json:"bookmarkCount"`
	CanPrevious   bool          `json:"canPrevious"`
	CanNext       bool          `json:"canNext"`
	Live          Stats         `json:"live"`
	Stored        Stats         `json:"stored"`
	Summary       Summary       `json:"summary"`
	Elapsed       int           `json:"elapsed"`
	ElapsedLabel  string        `json:"elapsedLabel"`
	Grid          []GridCell    `json:"grid,omitempty"`
	Score         *Score        `json:"score,omitempty"`
}

// Presenter receives engine output. Calls are made while the engine is locked,
// in mutation order; implementations must not call back into the engine.
type Presenter interface {
	Present(View)
	Tick(elapsedSeconds int)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Present(View) {}
func (NopPresenter) Tick(int)     {}

// MemoryPresenter records views and ticks for tests.
type MemoryPresenter struct {
	mu    sync.Mutex
	views []View
	ticks []int
}

func NewMemoryPresenter() *MemoryPresenter {
	return &MemoryPresenter{}
}

func (p *MemoryPresenter) Present(v View) {
	p.mu.Lock()
	p.views = append(p.views, v)
	p.mu.Unlock()
}

func (p *MemoryPresenter) Tick(elapsed int) {
	p.mu.Lock()
	p.ticks = append(p.ticks, elapsed)
	p.mu.Unlock()
}

// Views returns the presented views, oldest first.
func (p *MemoryPresenter) Views() []View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]View{}, p.views...)
}

// Ticks returns the elapsed values reported by the timer.
func (p *MemoryPresenter) Ticks() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int{}, p.ticks...)
}

// Last returns the most recent view.
func (p *MemoryPresenter) Last() (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return View{}, false
	}
	return p.views[len(p.views)-1], true
}
