package view

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

// ListView is the topic list with per-topic and overall progress.
type ListView struct {
	src    Source
	notify Notifier

	mu     sync.Mutex
	state  State
	topics []progress.TopicProgress
	err    error
	gen    uint64
}

// NewListView creates an idle list view.
func NewListView(src Source, notify Notifier) *ListView {
	if notify == nil {
		notify = SlogNotifier{}
	}
	return &ListView{src: src, notify: notify, topics: []progress.TopicProgress{}}
}

// Refresh reloads the topic list. A response that arrives after a newer
// Refresh was started is discarded. On failure the previously loaded
// topics are kept.
func (v *ListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.state = StateLoading
	v.mu.Unlock()

	topics, err := v.src.FetchAll(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return nil
	}
	if err != nil {
		v.state = StateErrored
		v.err = err
		v.notify.Notify(Notification{
			Severity: SeverityError,
			Title:    titleError,
			Message:  "Не удалось загрузить прогресс",
			Err:      err,
		})
		return err
	}
	v.state = StateLoaded
	v.err = nil
	v.topics = topics
	return nil
}

// SetCompleted clamps n to the topic's task count, writes it and reloads.
func (v *ListView) SetCompleted(ctx context.Context, topicID, n int) error {
	topic, ok := v.Topic(topicID)
	if !ok {
		return fmt.Errorf("topic %d: %w", topicID, ErrUnknownTopic)
	}

	count := progress.Clamp(n, topic.Tasks)
	if _, err := v.src.SetProgress(ctx, topicID, count); err != nil {
		v.notify.Notify(Notification{
			Severity: SeverityError,
			Title:    titleError,
			Message:  "Не удалось сохранить прогресс",
			Err:      err,
		})
		return err
	}
	return v.Refresh(ctx)
}

// Topics returns the most recently loaded topics.
func (v *ListView) Topics() []progress.TopicProgress {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.topics)
}

// Topic returns one loaded topic.
func (v *ListView) Topic(id int) (progress.TopicProgress, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.topics {
		if t.ID == id {
			return t, true
		}
	}
	return progress.TopicProgress{}, false
}

// Overall is the rounded mean progress of the loaded topics.
func (v *ListView) Overall() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return progress.Overall(v.topics)
}

func (v *ListView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the error of the last failed fetch, or nil.
func (v *ListView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}
