package view

import (
	"log/slog"
	"sync"
)

// Severity of a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Notification is a short user-visible message.
type Notification struct {
	Severity Severity
	Title    string
	Message  string
	Err      error
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// SlogNotifier writes notifications to a structured logger.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (s SlogNotifier) Notify(n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"title", n.Title}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	if n.Severity == SeverityError {
		logger.Error(n.Message, attrs...)
		return
	}
	logger.Info(n.Message, attrs...)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Errors returns the recorded error notifications.
func (r *Recorder) Errors() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.Severity == SeverityError {
			out = append(out, n)
		}
	}
	return out
}
