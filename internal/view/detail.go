package view

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

// DetailView is one topic's theory sections with a local completion set.
// The set size is what gets written as the topic's completed count.
type DetailView struct {
	src     Source
	notify  Notifier
	topicID int

	mu       sync.Mutex
	state    State
	topic    progress.TopicProgress
	loaded   bool
	sections []catalog.Section
	done     map[string]bool
	gen      uint64
}

// NewDetailView creates an idle detail view for topicID.
func NewDetailView(src Source, notify Notifier, topicID int) *DetailView {
	if notify == nil {
		notify = SlogNotifier{}
	}
	return &DetailView{
		src:     src,
		notify:  notify,
		topicID: topicID,
		done:    make(map[string]bool),
	}
}

// Open loads the topic's sections and its current progress.
func (v *DetailView) Open(ctx context.Context) error {
	sections, err := v.src.Sections(ctx, v.topicID)
	if err != nil {
		v.fail(err)
		return err
	}

	v.mu.Lock()
	v.sections = sections
	v.mu.Unlock()

	return v.refresh(ctx)
}

func (v *DetailView) refresh(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.state = StateLoading
	v.mu.Unlock()

	topics, err := v.src.FetchAll(ctx)
	if err == nil {
		idx := slices.IndexFunc(topics, func(t progress.TopicProgress) bool { return t.ID == v.topicID })
		if idx < 0 {
			err = fmt.Errorf("topic %d: %w", v.topicID, ErrUnknownTopic)
		} else {
			v.mu.Lock()
			if gen == v.gen {
				v.topic = topics[idx]
				v.loaded = true
				v.state = StateLoaded
			}
			v.mu.Unlock()
			return nil
		}
	}

	v.mu.Lock()
	stale := gen != v.gen
	if !stale {
		v.state = StateErrored
	}
	v.mu.Unlock()
	if stale {
		return nil
	}
	v.fail(err)
	return err
}

func (v *DetailView) fail(err error) {
	v.mu.Lock()
	v.state = StateErrored
	v.mu.Unlock()
	v.notify.Notify(Notification{
		Severity: SeverityError,
		Title:    titleError,
		Message:  "Не удалось загрузить тему",
		Err:      err,
	})
}

// Toggle flips sectionID's completion, writes the new count and reloads.
// If the write fails the flip is undone.
func (v *DetailView) Toggle(ctx context.Context, sectionID string) error {
	v.mu.Lock()
	if !v.loaded {
		v.mu.Unlock()
		return ErrNotLoaded
	}
	if !slices.ContainsFunc(v.sections, func(s catalog.Section) bool { return s.ID == sectionID }) {
		v.mu.Unlock()
		return fmt.Errorf("section %q: %w", sectionID, ErrUnknownSection)
	}
	added := !v.done[sectionID]
	v.flip(sectionID, added)
	count := progress.Clamp(len(v.done), len(v.sections))
	v.mu.Unlock()

	if _, err := v.src.SetProgress(ctx, v.topicID, count); err != nil {
		v.mu.Lock()
		v.flip(sectionID, !added)
		v.mu.Unlock()
		v.notify.Notify(Notification{
			Severity: SeverityError,
			Title:    titleError,
			Message:  "Не удалось сохранить прогресс",
			Err:      err,
		})
		return err
	}
	return v.refresh(ctx)
}

func (v *DetailView) flip(sectionID string, on bool) {
	if on {
		v.done[sectionID] = true
	} else {
		delete(v.done, sectionID)
	}
}

// Progress is the share of sections marked complete, 0..100.
func (v *DetailView) Progress() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return progress.Percent(len(v.done), len(v.sections))
}

// IsComplete reports whether sectionID is in the completion set.
func (v *DetailView) IsComplete(sectionID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done[sectionID]
}

// CompletedCount is the size of the completion set.
func (v *DetailView) CompletedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.done)
}

// Topic returns the topic as last loaded from the service.
func (v *DetailView) Topic() (progress.TopicProgress, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.topic, v.loaded
}

func (v *DetailView) Sections() []catalog.Section {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.sections)
}

func (v *DetailView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
