package quiz

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/p-n-ai/pai-quiz/internal/progress"
)

// Stats are the attempted/correct/incorrect counters with accuracy in percent.
type Stats struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Accuracy  int `json:"accuracy"`
}

// Summary is the per-subject card figure shown on the home screen.
type Summary struct {
	Completion int `json:"completion"`
	Accuracy   int `json:"accuracy"`
}

// Percent returns 100*part/whole rounded half up, or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

// LiveStats folds the session's own answers.
func LiveStats(s *Session) Stats {
	var st Stats
	if s == nil {
		return st
	}
	for _, rec := range s.Answers {
		st.Attempted++
		if rec.IsCorrect {
			st.Correct++
		} else {
			st.Incorrect++
		}
	}
	st.Accuracy = Percent(st.Correct, st.Attempted)
	return st
}

// StoredStats projects a persisted record.
func StoredStats(rec progress.Record) Stats {
	return Stats{
		Attempted: rec.Attempted,
		Correct:   rec.Correct,
		Incorrect: rec.Incorrect,
		Accuracy:  Percent(rec.Correct, rec.Attempted),
	}
}

// SubjectSummary derives completion and accuracy for a subject of
// totalQuestions questions.
func SubjectSummary(rec progress.Record, totalQuestions int) Summary {
	return Summary{
		Completion: Percent(rec.Attempted, totalQuestions),
		Accuracy:   Percent(rec.Correct, rec.Attempted),
	}
}

// FormatElapsed renders seconds as MM:SS.
func FormatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ShortCode builds the sidebar code from the first letter of up to four words.
func ShortCode(subject string) string {
	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(subject) {
		if n == 4 {
			break
		}
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(r)
		n++
	}
	return strings.ToUpper(b.String())
}

// CellStatus marks a question in the navigation grid.
type CellStatus string

const (
	CellUnanswered CellStatus = "unanswered"
	CellCorrect    CellStatus = "correct"
	CellIncorrect  CellStatus = "incorrect"
)

// GridCell is one entry of the navigation grid.
type GridCell struct {
	Index      int        `json:"index"`
	Status     CellStatus `json:"status"`
	Bookmarked bool       `json:"bookmarked"`
	Current    bool       `json:"current"`
}

// NavGrid combines persisted history with the session's answers; the session
// wins where both know an index.
func NavGrid(s *Session, rec progress.Record) []GridCell {
	cells := make([]GridCell, len(s.Questions))
	for i := range cells {
		status := CellUnanswered
		switch rec.PerQuestion[i] {
		case progress.StatusCorrect:
			status = CellCorrect
		case progress.StatusIncorrect:
			status = CellIncorrect
		}
		if a, ok := s.Answers[i]; ok {
			status = CellIncorrect
			if a.IsCorrect {
				status = CellCorrect
			}
		}
		cells[i] = GridCell{
			Index:      i,
			Status:     status,
			Bookmarked: s.Bookmarks[i],
			Current:    i == s.CurrentIndex,
		}
	}
	return cells
}
