package services

import (
	"errors"
	"sync"

	"guidedesk/internal/repositories/interfaces"
)

// Recorder receives counts for status writes and live subscriptions.
// *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveMutation(collection, status, result string)
	SubscriptionOpened(collection string)
	SubscriptionClosed(collection string)
}

type Option func(*syncService)

func WithRecorder(r Recorder) Option {
	return func(s *syncService) {
		if r != nil {
			s.recorder = r
		}
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveMutation(string, string, string) {}
func (noopRecorder) SubscriptionOpened(string)              {}
func (noopRecorder) SubscriptionClosed(string)              {}

func mutationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// countedListener reports the subscription closed exactly once.
type countedListener struct {
	interfaces.Listener
	once   sync.Once
	closed func()
}

func (l *countedListener) Stop() {
	l.Listener.Stop()
	l.once.Do(l.closed)
}
