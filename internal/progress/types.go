// Package progress tracks per-student completion counts for catalog topics.
package progress

import (
	"time"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// Record is the persisted completion state of one topic for one student,
// keyed by (StudentID, TopicID).
type Record struct {
	StudentID          int64     `json:"student_id"`
	TopicID            int       `json:"topic_id"`
	CompletedTasks     int       `json:"completed_tasks"`
	ProgressPercentage int       `json:"progress_percentage"`
	LastUpdated        time.Time `json:"last_updated"`
}

// TopicProgress is a catalog topic merged with a student's record.
type TopicProgress struct {
	ID              int                `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Icon            string             `json:"icon"`
	Progress        int                `json:"progress"`
	Tasks           int                `json:"tasks"`
	Completed       int                `json:"completed"`
	Difficulty      catalog.Difficulty `json:"difficulty"`
	DifficultyLabel string             `json:"difficulty_label,omitempty"`
}

// Result is the outcome of a successful write.
type Result struct {
	Progress       int `json:"progress"`
	CompletedTasks int `json:"completed_tasks"`
}
