package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guidedesk/internal/repositories/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	snapshots [][]interfaces.Document
	err       error
}

func (r *recorder) onSnapshot(docs []interfaces.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, docs)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []interfaces.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func ids(docs []interfaces.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

var pendingQuery = interfaces.Query{
	Collection: "requests",
	Field:      "status",
	In:         []string{"pending"},
	OrderBy:    "createdAt",
	Descending: true,
}

func TestListenDeliversFilteredOrderedSnapshots(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.Insert("requests", "old", map[string]interface{}{"status": "pending", "createdAt": base})
	store.Insert("requests", "new", map[string]interface{}{"status": "pending", "createdAt": base.Add(time.Hour)})
	store.Insert("requests", "done", map[string]interface{}{"status": "accepted", "createdAt": base.Add(2 * time.Hour)})

	rec := &recorder{}
	l, err := store.Listen(context.Background(), pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer l.Stop()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"new", "old"}, ids(rec.last()))
}

func TestListenSkipsDocumentsWithoutOrderField(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	store.Insert("requests", "old", map[string]interface{}{"status": "pending", "createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	store.Insert("requests", "undated", map[string]interface{}{"status": "pending"})

	rec := &recorder{}
	l, err := store.Listen(context.Background(), pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer l.Stop()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"old"}, ids(rec.last()))

	// Gaining the field brings it into the result set.
	err = store.Update(context.Background(), "requests", "undated", map[string]interface{}{"createdAt": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"undated", "old"}, ids(rec.last()))
}

func TestUpdateRemovesDocumentFromMatchingSet(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	store.Insert("requests", "r1", map[string]interface{}{"status": "pending", "createdAt": time.Now()})

	rec := &recorder{}
	l, err := store.Listen(context.Background(), pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer l.Stop()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	err = store.Update(context.Background(), "requests", "r1", map[string]interface{}{"status": "accepted"}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.last())
}

func TestUpdatePrecondition(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	store.Insert("sosAlerts", "a1", map[string]interface{}{"status": "active"})
	pre := &interfaces.Precondition{Fields: []interfaces.FieldExpectation{{Field: "status", In: []string{"active"}}}}

	require.NoError(t, store.Update(context.Background(), "sosAlerts", "a1", map[string]interface{}{"status": "responding"}, pre))

	err := store.Update(context.Background(), "sosAlerts", "a1", map[string]interface{}{"status": "responding"}, pre)
	assert.True(t, errors.Is(err, interfaces.ErrConflict))

	err = store.Update(context.Background(), "sosAlerts", "missing", map[string]interface{}{"status": "resolved"}, nil)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestStoppedListenerReceivesNothing(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	store.Insert("requests", "r1", map[string]interface{}{"status": "pending", "createdAt": time.Now()})

	rec := &recorder{}
	l, err := store.Listen(context.Background(), pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	l.Stop()
	assert.Equal(t, 0, store.ListenerCount())

	store.Insert("requests", "r2", map[string]interface{}{"status": "pending", "createdAt": time.Now()})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestFailListenersReportsError(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	rec := &recorder{}
	_, err := store.Listen(context.Background(), pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)

	boom := errors.New("permission denied")
	store.FailListeners("requests", boom)

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.err != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, boom, rec.err)
	assert.Equal(t, 0, store.ListenerCount())
}

func TestContextCancelStopsListener(t *testing.T) {
	store := NewDocumentStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	_, err := store.Listen(ctx, pendingQuery, rec.onSnapshot, rec.onError)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return store.ListenerCount() == 0 }, time.Second, 5*time.Millisecond)
}
