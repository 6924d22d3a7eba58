package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/report"
)

func TestWrite(t *testing.T) {
	topics := []progress.TopicProgress{
		{ID: 1, Title: "Числа и вычисления", Difficulty: catalog.DifficultyEasy, Tasks: 12, Completed: 6, Progress: 50},
		{ID: 3, Title: "Уравнения и неравенства", Difficulty: catalog.DifficultyMedium, Tasks: 18, Completed: 18, Progress: 100},
	}

	var buf bytes.Buffer
	err := report.Write(&buf, topics, report.Options{
		StudentID:   1,
		Language:    language.Russian,
		GeneratedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}

	tests := []struct {
		row, col int
		want     string
	}{
		{0, 0, "ID"},
		{0, 5, "Progress %"},
		{1, 1, "Числа и вычисления"},
		{1, 2, "Базовый"},
		{1, 3, "6"},
		{1, 5, "50"},
		{2, 0, "3"},
		{2, 2, "Средний"},
		{2, 5, "100"},
		{4, 0, "Overall %"},
		{4, 1, "75"},
		{5, 1, "1"},
		{6, 1, "2026-04-01T10:00:00Z"},
	}
	for _, tt := range tests {
		if tt.row >= len(rows) || tt.col >= len(rows[tt.row]) {
			t.Errorf("cell (%d,%d) missing", tt.row, tt.col)
			continue
		}
		if got := rows[tt.row][tt.col]; got != tt.want {
			t.Errorf("cell (%d,%d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestBuild_NoTopics(t *testing.T) {
	f, err := report.Build(nil, report.Options{StudentID: 2, Language: language.English})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer f.Close()

	overall, err := f.GetCellValue(report.SheetName, "B3")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if overall != "0" {
		t.Errorf("overall = %q, want 0", overall)
	}
}
