// Package report exports per-subject progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/progress"
	"github.com/p-n-ai/pai-quiz/internal/questionbank"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// Sheet names.
const (
	SheetSummary   = "Progress"
	SheetQuestions = "Questions"
)

var (
	summaryHeader  = []any{"Subject", "Code", "Questions", "Attempted", "Correct", "Incorrect", "Completion %", "Accuracy %", "Bookmarks"}
	questionHeader = []any{"Subject", "#", "Question", "Status", "Bookmarked"}
)

// Source lists subjects and their questions.
type Source interface {
	Subjects() []string
	Questions(subject string) ([]questionbank.Question, bool)
}

// Write renders one summary row per subject and one detail row per question
// into an XLSX workbook. Subjects without questions but with stored progress
// are listed after the known ones.
func Write(w io.Writer, src Source, records map[string]progress.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetQuestions); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	for _, sheet := range []struct {
		name   string
		header []any
	}{
		{SheetSummary, summaryHeader},
		{SheetQuestions, questionHeader},
	} {
		if err := setRow(f, sheet.name, 1, sheet.header); err != nil {
			return err
		}
		if err := f.SetRowStyle(sheet.name, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 32); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if err := f.SetColWidth(SheetQuestions, "C", "C", 60); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	subjects := src.Subjects()
	known := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		known[s] = true
	}
	for _, s := range slices.Sorted(maps.Keys(records)) {
		if !known[s] {
			subjects = append(subjects, s)
		}
	}

	summaryRow, questionRow := 2, 2
	for _, subject := range subjects {
		qs, _ := src.Questions(subject)
		rec := records[subject]
		stats := quiz.StoredStats(rec)
		sum := quiz.SubjectSummary(rec, len(qs))

		if err := setRow(f, SheetSummary, summaryRow, []any{
			subject, quiz.ShortCode(subject), len(qs),
			stats.Attempted, stats.Correct, stats.Incorrect,
			sum.Completion, sum.Accuracy, len(rec.Bookmarks),
		}); err != nil {
			return err
		}
		summaryRow++

		for i, q := range qs {
			status := "unanswered"
			if st, ok := rec.PerQuestion[i]; ok {
				status = string(st)
			}
			if err := setRow(f, SheetQuestions, questionRow, []any{
				subject, i + 1, q.Text, status, rec.Bookmarks[i],
			}); err != nil {
				return err
			}
			questionRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
