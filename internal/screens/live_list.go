package screens

import (
	"errors"
	"sync"

	"guidedesk/internal/services"
)

type phase int

const (
	phaseIdle phase = iota
	phaseSubscribed
	phaseClosed
)

var errAlreadyOpen = errors.New("screen already open")

// liveList holds the in-memory list behind a screen. Each snapshot replaces
// it wholesale and triggers a render.
type liveList[T any] struct {
	screen   Screen
	view     View
	reporter *errorReporter
	present  func([]T) interface{}

	mu       sync.Mutex
	phase    phase
	items    []T
	status   services.SubscriptionStatus
	closeSub func()
}

func (l *liveList[T]) begin() error {
	l.mu.Lock()
	switch l.phase {
	case phaseSubscribed:
		l.mu.Unlock()
		return errAlreadyOpen
	case phaseClosed:
		l.mu.Unlock()
		return ErrNotOpen
	}
	l.phase = phaseSubscribed
	l.items = []T{}
	l.status = services.SubscriptionConnecting
	state := l.stateLocked()
	l.mu.Unlock()

	l.view.Render(state)
	return nil
}

func (l *liveList[T]) abort() {
	l.mu.Lock()
	l.phase = phaseIdle
	l.items = nil
	l.mu.Unlock()
}

func (l *liveList[T]) attach(closeSub func()) {
	l.mu.Lock()
	if l.phase == phaseClosed {
		l.mu.Unlock()
		closeSub()
		return
	}
	l.closeSub = closeSub
	l.mu.Unlock()
}

func (l *liveList[T]) replace(items []T) {
	l.mu.Lock()
	if l.phase != phaseSubscribed {
		l.mu.Unlock()
		return
	}
	l.items = items
	state := l.stateLocked()
	l.mu.Unlock()

	l.view.Render(state)
}

func (l *liveList[T]) statusChanged(status services.SubscriptionStatus, err error) {
	l.mu.Lock()
	if l.phase != phaseSubscribed {
		l.mu.Unlock()
		return
	}
	l.status = status
	state := l.stateLocked()
	l.mu.Unlock()

	// Live is always followed by a snapshot render; only error needs its own.
	if status == services.SubscriptionError {
		l.view.Render(state)
		l.reporter.report(ActionSubscribe, "", err)
	}
}

func (l *liveList[T]) refresh() {
	l.mu.Lock()
	if l.phase != phaseSubscribed {
		l.mu.Unlock()
		return
	}
	state := l.stateLocked()
	l.mu.Unlock()

	l.view.Render(state)
}

func (l *liveList[T]) close() {
	l.mu.Lock()
	if l.phase == phaseClosed {
		l.mu.Unlock()
		return
	}
	l.phase = phaseClosed
	l.status = services.SubscriptionClosed
	closeSub := l.closeSub
	l.closeSub = nil
	l.mu.Unlock()

	if closeSub != nil {
		closeSub()
	}
}

func (l *liveList[T]) state() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *liveList[T]) snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *liveList[T]) isOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase == phaseSubscribed
}

func (l *liveList[T]) stateLocked() State {
	status := l.status
	if l.phase == phaseIdle {
		status = ""
	}
	return State{
		Screen: l.screen,
		Status: status,
		Count:  len(l.items),
		Items:  l.present(l.items),
	}
}
