// Package report renders a student's progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

// SheetName is the name of the single worksheet in an export.
const SheetName = "Progress"

// ContentType is the MIME type of an XLSX workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"ID", "Topic", "Difficulty", "Completed", "Tasks", "Progress %"}

// Options describe the export.
type Options struct {
	StudentID   int64
	Language    language.Tag
	GeneratedAt time.Time
}

// Build lays out one row per topic followed by an overall row. The caller
// must Close the returned file.
func Build(topics []progress.TopicProgress, opts Options) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(SheetName, cell, v)
	}

	for i, h := range headers {
		if err := set(i+1, 1, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, t := range topics {
		values := []any{
			t.ID,
			t.Title,
			catalog.DifficultyLabel(t.Difficulty, opts.Language),
			t.Completed,
			t.Tasks,
			t.Progress,
		}
		for i, v := range values {
			if err := set(i+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("write topic %d: %w", t.ID, err)
			}
		}
		row++
	}

	summary := []struct {
		label string
		value any
	}{
		{"Overall %", progress.Overall(topics)},
		{"Student", opts.StudentID},
		{"Generated", opts.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	row++
	for _, s := range summary {
		if err := set(1, row, s.label); err != nil {
			f.Close()
			return nil, fmt.Errorf("write summary: %w", err)
		}
		if err := set(2, row, s.value); err != nil {
			f.Close()
			return nil, fmt.Errorf("write summary: %w", err)
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellStyle(SheetName, cell, cell, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("style summary: %w", err)
		}
		row++
	}

	if err := f.SetColWidth(SheetName, "B", "B", 40); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}

	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, topics []progress.TopicProgress, opts Options) error {
	f, err := Build(topics, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
