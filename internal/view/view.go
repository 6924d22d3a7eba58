// Package view holds the state behind the topic list and topic detail
// screens. Renderers read state from the views and call their methods in
// response to user input; the views talk to the progress service.
package view

import (
	"context"
	"errors"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

var (
	// ErrUnknownTopic is returned for topics absent from the loaded list.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrUnknownSection is returned when toggling a section the topic lacks.
	ErrUnknownSection = errors.New("unknown section")
	// ErrNotLoaded is returned when a view is used before its first load.
	ErrNotLoaded = errors.New("view not loaded")
)

const titleError = "Ошибка"

// Source is the progress service as seen by the views.
type Source interface {
	FetchAll(ctx context.Context) ([]progress.TopicProgress, error)
	SetProgress(ctx context.Context, topicID, completed int) (progress.Result, error)
	Sections(ctx context.Context, topicID int) ([]catalog.Section, error)
}

// State of a view's most recent fetch.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}
