package quiz

import (
	"sync"
	"time"
)

// Ticker drives the session clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// ManualTicker is a test double that only ticks when Fire is called.
type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

// Fire delivers one tick unless one is already pending.
func (m *ManualTicker) Fire() {
	select {
	case m.ch <- time.Now():
	default:
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// ManualClock hands out ManualTickers and remembers them.
type ManualClock struct {
	mu      sync.Mutex
	tickers []*ManualTicker
}

// NewTicker satisfies EngineConfig.NewTicker.
func (c *ManualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ManualTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns every ticker created so far, oldest first.
func (c *ManualClock) Tickers() []*ManualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ManualTicker(nil), c.tickers...)
}

// Running counts tickers that have not been stopped.
func (c *ManualClock) Running() int {
	n := 0
	for _, t := range c.Tickers() {
		if !t.Stopped() {
			n++
		}
	}
	return n
}
