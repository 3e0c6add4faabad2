package report_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/questionbank"
	"github.com/p-n-ai/pai-quiz/internal/report"
)

func TestWrite(t *testing.T) {
	bank := questionbank.New(map[string][]questionbank.Question{
		"Computer Networks": {
			{Text: "Layer of IP?", Options: []string{"Network", "Link"}, Answer: "Network"},
			{Text: "Port of HTTP?", Options: []string{"80", "21"}, Answer: "80"},
			{Text: "Size of IPv4?", Options: []string{"32 bits", "64 bits"}, Answer: "32 bits"},
		},
	})
	records := map[string]progress.Record{
		"Computer Networks": {
			Attempted: 2, Correct: 1, Incorrect: 1,
			PerQuestion: map[int]progress.Status{0: progress.StatusCorrect, 1: progress.StatusIncorrect},
			Bookmarks:   map[int]bool{2: true},
		},
		"Retired Subject": {Attempted: 1, Correct: 1, PerQuestion: map[int]progress.Status{0: progress.StatusCorrect}},
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, bank, records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	cells := []struct {
		sheet, cell, want string
	}{
		{report.SheetSummary, "A1", "Subject"},
		{report.SheetSummary, "A2", "Computer Networks"},
		{report.SheetSummary, "B2", "CN"},
		{report.SheetSummary, "C2", "3"},
		{report.SheetSummary, "D2", "2"},
		{report.SheetSummary, "G2", "67"},
		{report.SheetSummary, "H2", "50"},
		{report.SheetSummary, "I2", "1"},
		{report.SheetSummary, "A3", "Retired Subject"},
		{report.SheetSummary, "G3", "0"},
		{report.SheetQuestions, "C2", "Layer of IP?"},
		{report.SheetQuestions, "D2", "correct"},
		{report.SheetQuestions, "D3", "incorrect"},
		{report.SheetQuestions, "D4", "unanswered"},
		{report.SheetQuestions, "E4", "TRUE"},
		{report.SheetQuestions, "A5", ""},
	}
	for _, c := range cells {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s) error = %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Errorf("%s!%s = %q, want %q", c.sheet, c.cell, got, c.want)
		}
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, questionbank.Empty(), nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.SheetSummary)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
