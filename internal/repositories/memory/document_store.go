package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"guidedesk/internal/repositories/interfaces"
)

// DocumentStore is an in-process live document store. It evaluates queries
// itself and pushes full result sets to listeners, one goroutine per listener,
// so per-listener ordering matches the order of writes.
type DocumentStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
	listeners   map[*listener]struct{}
	closed      bool
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]map[string]interface{}),
		listeners:   make(map[*listener]struct{}),
	}
}

func (s *DocumentStore) Name() string {
	return "memory"
}

// Insert creates or replaces a document. It stands in for the tourist-facing
// app that creates requests and alerts.
func (s *DocumentStore) Insert(collection, id string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		s.collections[collection] = docs
	}
	docs[id] = copyMap(data)
	s.notifyLocked(collection)
}

// Get returns a copy of a stored document.
func (s *DocumentStore) Get(collection, id string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, false
	}
	return copyMap(data), true
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre *interfaces.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store closed")
	}

	data, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrNotFound)
	}
	if !pre.Satisfied(data) {
		return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrConflict)
	}

	for k, v := range fields {
		data[k] = copyValue(v)
	}
	s.notifyLocked(collection)
	return nil
}

func (s *DocumentStore) Listen(ctx context.Context, query interfaces.Query, onSnapshot interfaces.SnapshotFunc, onError interfaces.ErrorFunc) (interfaces.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &listener{
		store:      s,
		query:      query,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("memory store closed")
	}
	s.listeners[l] = struct{}{}
	l.enqueue(s.evaluateLocked(query))
	s.mu.Unlock()

	go l.run(ctx)
	return l, nil
}

// FailListeners terminates every listener on collection with err, the way a
// remote store drops a listener on permission loss.
func (s *DocumentStore) FailListeners(collection string, err error) {
	s.mu.Lock()
	var failed []*listener
	for l := range s.listeners {
		if l.query.Collection == collection {
			failed = append(failed, l)
			delete(s.listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range failed {
		l.fail(err)
	}
}

// ListenerCount reports attached listeners.
func (s *DocumentStore) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *DocumentStore) Close() error {
	s.mu.Lock()
	s.closed = true
	listeners := s.listeners
	s.listeners = make(map[*listener]struct{})
	s.mu.Unlock()

	for l := range listeners {
		l.Stop()
	}
	return nil
}

func (s *DocumentStore) notifyLocked(collection string) {
	for l := range s.listeners {
		if l.query.Collection == collection {
			l.enqueue(s.evaluateLocked(l.query))
		}
	}
}

func (s *DocumentStore) evaluateLocked(q interfaces.Query) []interfaces.Document {
	var docs []interfaces.Document
	for id, data := range s.collections[q.Collection] {
		if _, ok := data[q.OrderBy]; q.OrderBy != "" && !ok {
			continue
		}
		if q.Matches(data) {
			docs = append(docs, interfaces.Document{ID: id, Data: copyMap(data)})
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if docs == nil {
		docs = []interfaces.Document{}
	}
	return docs
}

func (s *DocumentStore) remove(l *listener) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
}

type listener struct {
	store      *DocumentStore
	query      interfaces.Query
	onSnapshot interfaces.SnapshotFunc
	onError    interfaces.ErrorFunc

	mu      sync.Mutex
	pending [][]interfaces.Document
	err     error
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (l *listener) enqueue(docs []interfaces.Document) {
	l.mu.Lock()
	l.pending = append(l.pending, docs)
	l.mu.Unlock()
	l.signal()
}

func (l *listener) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

func (l *listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) run(ctx context.Context) {
	defer l.store.remove(l)

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case <-l.wake:
		}

		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		err := l.err
		l.mu.Unlock()

		for _, docs := range batch {
			if l.stopped() {
				return
			}
			l.onSnapshot(docs)
		}

		if err != nil {
			if !l.stopped() && l.onError != nil {
				l.onError(err)
			}
			l.Stop()
			return
		}
	}
}

func (l *listener) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *listener) Stop() {
	l.once.Do(func() {
		close(l.done)
		l.store.remove(l)
	})
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 1
		}
		return av.Compare(bv)
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int64:
		return compareFloat(float64(av), b)
	case int:
		return compareFloat(float64(av), b)
	case float64:
		return compareFloat(av, b)
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return 0
}

func compareFloat(a float64, b interface{}) int {
	var bv float64
	switch v := b.(type) {
	case int64:
		bv = float64(v)
	case int:
		bv = float64(v)
	case float64:
		bv = v
	default:
		return 1
	}
	switch {
	case a < bv:
		return -1
	case a > bv:
		return 1
	}
	return 0
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}
