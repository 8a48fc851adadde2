package services

import (
	"sync"

	"guidedesk/internal/repositories/interfaces"
)

type SubscriptionStatus string

const (
	SubscriptionConnecting SubscriptionStatus = "connecting"
	SubscriptionLive       SubscriptionStatus = "live"
	SubscriptionError      SubscriptionStatus = "error"
	SubscriptionClosed     SubscriptionStatus = "closed"
)

// StatusHandler is told about every status transition of a subscription.
type StatusHandler func(status SubscriptionStatus, err error)

type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	onStatus StatusHandler
}

func WithStatusHandler(fn StatusHandler) SubscribeOption {
	return func(o *subscribeOptions) {
		o.onStatus = fn
	}
}

// Subscription is a live query handle. It starts connecting, turns live with
// the first snapshot, and moves to error if the store drops the listener.
// Close is the unsubscribe handle: no snapshot arriving after Close reaches the
// callback. A callback already running when Close is called finishes.
type Subscription[T any] struct {
	mu       sync.RWMutex
	status   SubscriptionStatus
	last     []T
	err      error
	listener interfaces.Listener

	callback func([]T)
	onStatus StatusHandler
}

func newSubscription[T any](callback func([]T), opts []SubscribeOption) *Subscription[T] {
	o := &subscribeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return &Subscription[T]{
		status:   SubscriptionConnecting,
		callback: callback,
		onStatus: o.onStatus,
	}
}

func (s *Subscription[T]) Status() SubscriptionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastSnapshot returns the most recently delivered result set, or nil before
// the first delivery.
func (s *Subscription[T]) LastSnapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	out := make([]T, len(s.last))
	copy(out, s.last)
	return out
}

// Err returns the listener error once the subscription is in the error state.
func (s *Subscription[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.status == SubscriptionClosed {
		s.mu.Unlock()
		return
	}
	s.status = SubscriptionClosed
	listener := s.listener
	onStatus := s.onStatus
	s.mu.Unlock()

	if listener != nil {
		listener.Stop()
	}
	if onStatus != nil {
		onStatus(SubscriptionClosed, nil)
	}
}

func (s *Subscription[T]) attach(listener interfaces.Listener) {
	s.mu.Lock()
	closed := s.status == SubscriptionClosed
	if !closed {
		s.listener = listener
	}
	s.mu.Unlock()

	// Closed from inside the first callback, before Listen returned.
	if closed {
		listener.Stop()
	}
}

func (s *Subscription[T]) deliver(items []T) {
	s.mu.Lock()
	if s.status == SubscriptionClosed {
		s.mu.Unlock()
		return
	}
	changed := s.status != SubscriptionLive
	s.status = SubscriptionLive
	s.err = nil
	s.last = items
	onStatus := s.onStatus
	s.mu.Unlock()

	if changed && onStatus != nil {
		onStatus(SubscriptionLive, nil)
	}
	if s.callback != nil {
		s.callback(items)
	}
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	if s.status == SubscriptionClosed {
		s.mu.Unlock()
		return
	}
	s.status = SubscriptionError
	s.err = err
	onStatus := s.onStatus
	s.mu.Unlock()

	if onStatus != nil {
		onStatus(SubscriptionError, err)
	}
}
