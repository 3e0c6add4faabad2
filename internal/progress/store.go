// Package progress keeps durable per-subject quiz progress. The whole mapping
// lives in memory and is written wholesale to a single storage slot after
// every mutation.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

const storeTimeout = 5 * time.Second

// ErrStorageUnavailable wraps every backend read or write failure.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Status is the persisted outcome of a question.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
)

func statusOf(isCorrect bool) Status {
	if isCorrect {
		return StatusCorrect
	}
	return StatusIncorrect
}

// Record is the persisted progress of one subject.
//
// Attempted, Correct and Incorrect are always recounted from PerQuestion, so
// Attempted == len(PerQuestion) and Correct+Incorrect == Attempted hold after
// every write.
type Record struct {
	Attempted   int            `json:"attempted"`
	Correct     int            `json:"correct"`
	Incorrect   int            `json:"incorrect"`
	PerQuestion map[int]Status `json:"perQuestion"`
	Bookmarks   map[int]bool   `json:"bookmarks"`
}

func newRecord() *Record {
	return &Record{
		PerQuestion: map[int]Status{},
		Bookmarks:   map[int]bool{},
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.PerQuestion = maps.Clone(r.PerQuestion)
	out.Bookmarks = maps.Clone(r.Bookmarks)
	if out.PerQuestion == nil {
		out.PerQuestion = map[int]Status{}
	}
	if out.Bookmarks == nil {
		out.Bookmarks = map[int]bool{}
	}
	return out
}

// recount rebuilds the counters from PerQuestion.
func (r *Record) recount() {
	r.Attempted, r.Correct, r.Incorrect = 0, 0, 0
	for _, st := range r.PerQuestion {
		r.Attempted++
		switch st {
		case StatusCorrect:
			r.Correct++
		case StatusIncorrect:
			r.Incorrect++
		}
	}
}

// Store is the process-wide progress mapping, keyed by subject name.
type Store struct {
	backend Backend
	records map[string]*Record
	mu      sync.Mutex
}

// NewStore creates a store over backend and loads the current slot.
func NewStore(backend Backend) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend: backend,
		records: make(map[string]*Record),
	}
	s.Load()
	return s
}

// Load replaces the in-memory mapping with the slot contents and returns a
// copy of it. An absent, unreadable or malformed slot yields an empty mapping.
func (s *Store) Load() map[string]Record {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	records := make(map[string]*Record)
	data, err := s.backend.Load(ctx)
	switch {
	case err != nil:
		slog.Error("failed to load progress, starting empty", "error", err)
	case len(data) == 0:
	default:
		records = decode(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	return s.snapshotLocked()
}

func decode(data []byte) map[string]*Record {
	var raw map[string]*Record
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("progress slot is malformed, starting empty", "error", err)
		return make(map[string]*Record)
	}

	records := make(map[string]*Record, len(raw))
	for subject, rec := range raw {
		if rec == nil {
			continue
		}
		if rec.PerQuestion == nil {
			rec.PerQuestion = map[int]Status{}
		}
		if rec.Bookmarks == nil {
			rec.Bookmarks = map[int]bool{}
		}
		for idx, st := range rec.PerQuestion {
			if idx < 0 || (st != StatusCorrect && st != StatusIncorrect) {
				slog.Warn("dropping invalid progress entry",
					"subject", subject,
					"question_index", idx,
					"status", st,
				)
				delete(rec.PerQuestion, idx)
			}
		}
		for idx, on := range rec.Bookmarks {
			if idx < 0 || !on {
				delete(rec.Bookmarks, idx)
			}
		}
		rec.recount()
		records[subject] = rec
	}
	return records
}

// Ensure returns the subject's record, inserting a zeroed one if absent.
func (s *Store) Ensure(subject string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(subject).Clone()
}

func (s *Store) ensureLocked(subject string) *Record {
	rec, ok := s.records[subject]
	if !ok {
		rec = newRecord()
		s.records[subject] = rec
	}
	return rec
}

// Get returns a copy of the subject's record.
func (s *Store) Get(subject string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[subject]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// All returns a copy of the whole mapping.
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for subject, rec := range s.records {
		out[subject] = rec.Clone()
	}
	return out
}

// RecordAnswer stores the outcome for a question and saves. A prior status for
// the same index is replaced, never double counted.
func (s *Store) RecordAnswer(subject string, questionIndex int, isCorrect bool) error {
	if questionIndex < 0 {
		return fmt.Errorf("question index must be non-negative, got %d", questionIndex)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(subject)
	switch rec.PerQuestion[questionIndex] {
	case StatusCorrect:
		rec.Correct--
	case StatusIncorrect:
		rec.Incorrect--
	}
	rec.PerQuestion[questionIndex] = statusOf(isCorrect)
	rec.recount()

	return s.saveLocked()
}

// ToggleBookmark flips the bookmark on a question, saves, and returns the new
// state. Counters are not touched.
func (s *Store) ToggleBookmark(subject string, questionIndex int) (bool, error) {
	if questionIndex < 0 {
		return false, fmt.Errorf("question index must be non-negative, got %d", questionIndex)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(subject)
	on := !rec.Bookmarks[questionIndex]
	if on {
		rec.Bookmarks[questionIndex] = true
	} else {
		delete(rec.Bookmarks, questionIndex)
	}
	return on, s.saveLocked()
}

// Reset deletes the subject's record and saves.
func (s *Store) Reset(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, subject)
	return s.saveLocked()
}

// Save writes the whole mapping to the backend.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked runs under s.mu, so saves reach the backend in mutation order.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := s.backend.Save(ctx, data); err != nil {
		slog.Error("failed to save progress", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// HealthCheck pings the backend when it supports it.
func (s *Store) HealthCheck(ctx context.Context) error {
	if hc, ok := s.backend.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
