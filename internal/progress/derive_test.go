package progress

import (
	"math"
	"testing"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"none", 0, 12, 0},
		{"all", 12, 12, 100},
		{"half", 9, 18, 50},
		{"rounds down", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"rounds half up", 1, 8, 13},
		{"zero total", 5, 0, 0},
		{"negative total", 1, -4, 0},
		{"over total capped", 25, 12, 100},
		{"negative completed", -2, 10, 0},
		{"max int completed", math.MaxInt, 12, 100},
		{"min int completed", math.MinInt, 12, 0},
		{"max int both", math.MaxInt, math.MaxInt, 100},
		{"one of max int", 1, math.MaxInt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.completed, tt.total); got != tt.want {
				t.Errorf("Percent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
			}
		})
	}
}

func TestPercent_MatchesRoundedRatio(t *testing.T) {
	for total := 1; total <= 20; total++ {
		for completed := 0; completed <= total; completed++ {
			got := Percent(completed, total)
			// Integer form of round(100*c/t) for non-negative inputs.
			want := (200*completed + total) / (2 * total)
			if got != want {
				t.Errorf("Percent(%d, %d) = %d, want %d", completed, total, got, want)
			}
		}
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		progress []int
		want     int
	}{
		{"empty", nil, 0},
		{"single", []int{42}, 42},
		{"mean", []int{0, 50, 100}, 50},
		{"rounds", []int{33, 34}, 34},
		{"rounds down", []int{10, 10, 11}, 10},
		{"all zero", []int{0, 0, 0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := make([]TopicProgress, len(tt.progress))
			for i, p := range tt.progress {
				topics[i] = TopicProgress{ID: i + 1, Progress: p}
			}
			if got := Overall(topics); got != tt.want {
				t.Errorf("Overall(%v) = %d, want %d", tt.progress, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		n, limit, want int
	}{
		{25, 12, 12},
		{20, 18, 18},
		{5, 12, 5},
		{0, 12, 0},
		{-1, 12, 0},
		{3, 0, 0},
		{3, -1, 0},
	}

	for _, tt := range tests {
		if got := Clamp(tt.n, tt.limit); got != tt.want {
			t.Errorf("Clamp(%d, %d) = %d, want %d", tt.n, tt.limit, got, tt.want)
		}
	}
}
