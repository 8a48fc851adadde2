package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guidedesk/internal/auth"
	"guidedesk/internal/config"
	"guidedesk/internal/models"
	"guidedesk/internal/repositories/interfaces"
	"guidedesk/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	guideA = auth.Session{UID: "guide-a", Email: "a@example.com"}
	guideB = auth.Session{UID: "guide-b", Email: "b@example.com"}
	t0     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

type collector[T any] struct {
	mu    sync.Mutex
	calls [][]T
}

func (c *collector[T]) add(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, items)
}

func (c *collector[T]) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *collector[T]) last() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

func newTestService(t *testing.T, cfg *config.SyncConfig) (*memory.DocumentStore, *syncService) {
	t.Helper()
	store := memory.NewDocumentStore()
	t.Cleanup(func() { store.Close() })

	svc := NewSyncService(store, cfg, nil).(*syncService)
	svc.now = func() time.Time { return t0.Add(24 * time.Hour) }
	return store, svc
}

func seedRequest(store *memory.DocumentStore, id, status string, created time.Time) {
	store.Insert("requests", id, map[string]interface{}{
		"touristId":   "t-" + id,
		"touristName": "Tourist " + id,
		"location":    "Old Town",
		"destination": "Castle",
		"requestDate": "2024-03-11",
		"status":      status,
		"createdAt":   created,
	})
}

func seedAlert(store *memory.DocumentStore, id, status string, created time.Time) {
	store.Insert("sosAlerts", id, map[string]interface{}{
		"touristId":   "t-" + id,
		"touristName": "Tourist " + id,
		"location":    "Harbour",
		"message":     "help",
		"status":      status,
		"createdAt":   created,
	})
}

func requestIDs(items []*models.TouristRequest) []string {
	out := []string{}
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}

func alertIDs(items []*models.SOSAlert) []string {
	out := []string{}
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestSubscribeToRequestsListsPendingNewestFirst(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "r1", "pending", t0)
	seedRequest(store, "r2", "accepted", t0.Add(time.Minute))
	seedRequest(store, "r3", "pending", t0.Add(2*time.Minute))
	seedRequest(store, "r4", "rejected", t0.Add(3*time.Minute))

	got := &collector[*models.TouristRequest]{}
	sub, err := svc.SubscribeToRequests(context.Background(), got.add)
	require.NoError(t, err)
	defer sub.Close()

	waitFor(t, func() bool { return got.count() == 1 })
	assert.Equal(t, []string{"r3", "r1"}, requestIDs(got.last()))
	assert.Equal(t, SubscriptionLive, sub.Status())
	assert.Equal(t, []string{"r3", "r1"}, requestIDs(sub.LastSnapshot()))

	first := got.last()[1]
	assert.Equal(t, "Tourist r1", first.TouristName)
	assert.Equal(t, models.RequestStatusPending, first.Status)
	assert.Equal(t, t0, first.CreatedAt)
	assert.Nil(t, first.GuideID)
}

func TestAcceptRequestRemovesItFromPendingList(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "r1", "pending", t0)
	seedRequest(store, "r2", "pending", t0.Add(time.Minute))

	got := &collector[*models.TouristRequest]{}
	sub, err := svc.SubscribeToRequests(context.Background(), got.add)
	require.NoError(t, err)
	defer sub.Close()
	waitFor(t, func() bool { return got.count() == 1 })

	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideA))

	waitFor(t, func() bool { return got.count() == 2 })
	assert.Equal(t, []string{"r2"}, requestIDs(got.last()))

	doc, ok := store.Get("requests", "r1")
	require.True(t, ok)
	assert.Equal(t, "accepted", doc["status"])
	assert.Equal(t, "guide-a", doc["guideId"])
	assert.Equal(t, t0.Add(24*time.Hour), doc["acceptedAt"])
}

func TestRejectRequestSetsGuideAndTimestamp(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "r1", "pending", t0)

	require.NoError(t, svc.RejectRequest(context.Background(), "r1", guideB))

	doc, _ := store.Get("requests", "r1")
	assert.Equal(t, "rejected", doc["status"])
	assert.Equal(t, "guide-b", doc["guideId"])
	assert.Equal(t, t0.Add(24*time.Hour), doc["rejectedAt"])
}

func TestSOSRespondThenResolve(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedAlert(store, "a1", "active", t0)
	seedAlert(store, "a2", "responding", t0.Add(time.Minute))
	seedAlert(store, "a3", "resolved", t0.Add(2*time.Minute))

	got := &collector[*models.SOSAlert]{}
	sub, err := svc.SubscribeToSOSAlerts(context.Background(), got.add)
	require.NoError(t, err)
	defer sub.Close()

	waitFor(t, func() bool { return got.count() == 1 })
	assert.Equal(t, []string{"a2", "a1"}, alertIDs(got.last()))

	require.NoError(t, svc.RespondToSOS(context.Background(), "a1", guideA))
	waitFor(t, func() bool { return got.count() == 2 })

	var a1 *models.SOSAlert
	for _, a := range got.last() {
		if a.ID == "a1" {
			a1 = a
		}
	}
	require.NotNil(t, a1)
	assert.Equal(t, models.SOSStatusResponding, a1.Status)
	require.NotNil(t, a1.RespondingGuideID)
	assert.Equal(t, "guide-a", *a1.RespondingGuideID)
	assert.True(t, a1.IsRespondedBy("guide-a"))

	require.NoError(t, svc.ResolveSOS(context.Background(), "a1", guideA))
	waitFor(t, func() bool { return got.count() == 3 })
	assert.Equal(t, []string{"a2"}, alertIDs(got.last()))

	doc, _ := store.Get("sosAlerts", "a1")
	assert.Equal(t, "resolved", doc["status"])
	assert.Equal(t, "guide-a", doc["respondingGuideId"])
}

// Known race kept for compatibility: without transition enforcement two guides
// can both accept the same request and the last write wins silently.
func TestAcceptTwiceLastWriterWinsWhenNotEnforced(t *testing.T) {
	cfg := config.DefaultSyncConfig()
	cfg.EnforceTransitions = false
	store, svc := newTestService(t, cfg)
	seedRequest(store, "r1", "pending", t0)

	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideA))
	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideB))

	doc, _ := store.Get("requests", "r1")
	assert.Equal(t, "accepted", doc["status"])
	assert.Equal(t, "guide-b", doc["guideId"])
}

func TestAcceptTwiceConflictsWhenEnforced(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "r1", "pending", t0)

	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideA))
	err := svc.AcceptRequest(context.Background(), "r1", guideB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	doc, _ := store.Get("requests", "r1")
	assert.Equal(t, "guide-a", doc["guideId"])
}

func TestConcurrentRespondHasOneWinner(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedAlert(store, "a1", "active", t0)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.RespondToSOS(context.Background(), "a1", auth.Session{UID: "guide-" + string(rune('a'+i))})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, errors.Is(err, ErrConflict))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestResolveResponderOnly(t *testing.T) {
	cfg := config.DefaultSyncConfig()
	cfg.ResolveResponderOnly = true
	store, svc := newTestService(t, cfg)
	seedAlert(store, "a1", "active", t0)

	require.NoError(t, svc.RespondToSOS(context.Background(), "a1", guideA))

	err := svc.ResolveSOS(context.Background(), "a1", guideB)
	assert.True(t, errors.Is(err, ErrConflict))

	require.NoError(t, svc.ResolveSOS(context.Background(), "a1", guideA))
}

func TestResolveByAnyGuideByDefault(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedAlert(store, "a1", "active", t0)

	require.NoError(t, svc.RespondToSOS(context.Background(), "a1", guideA))
	require.NoError(t, svc.ResolveSOS(context.Background(), "a1", guideB))

	err := svc.ResolveSOS(context.Background(), "a1", guideA)
	assert.True(t, errors.Is(err, ErrConflict), "resolved alerts cannot be resolved again")
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "r1", "pending", t0)

	got := &collector[*models.TouristRequest]{}
	sub, err := svc.SubscribeToRequests(context.Background(), got.add)
	require.NoError(t, err)
	waitFor(t, func() bool { return got.count() == 1 })

	sub.Close()
	assert.Equal(t, SubscriptionClosed, sub.Status())
	assert.Equal(t, 0, store.ListenerCount())

	seedRequest(store, "r2", "pending", t0.Add(time.Minute))
	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideA))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, got.count())
}

func TestListenerErrorIsVisible(t *testing.T) {
	store, svc := newTestService(t, nil)

	var mu sync.Mutex
	var statuses []SubscriptionStatus
	onStatus := func(status SubscriptionStatus, err error) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, status)
	}

	sub, err := svc.SubscribeToSOSAlerts(context.Background(), nil, WithStatusHandler(onStatus))
	require.NoError(t, err)
	defer sub.Close()
	waitFor(t, func() bool { return sub.Status() == SubscriptionLive })

	boom := errors.New("missing permissions")
	store.FailListeners("sosAlerts", boom)

	waitFor(t, func() bool { return sub.Status() == SubscriptionError })
	assert.Equal(t, boom, sub.Err())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []SubscriptionStatus{SubscriptionLive, SubscriptionError}, statuses)
}

func TestMutationsRequireSessionAndID(t *testing.T) {
	_, svc := newTestService(t, nil)

	err := svc.AcceptRequest(context.Background(), "r1", auth.Session{})
	assert.True(t, errors.Is(err, ErrMissingSession))

	err = svc.RespondToSOS(context.Background(), "", guideA)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestMutationOnMissingDocument(t *testing.T) {
	_, svc := newTestService(t, nil)

	err := svc.ResolveSOS(context.Background(), "nope", guideA)
	assert.True(t, errors.Is(err, ErrNotFound))
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Listen(ctx context.Context, q interfaces.Query, onSnapshot interfaces.SnapshotFunc, onError interfaces.ErrorFunc) (interfaces.Listener, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.Listener), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre *interfaces.Precondition) error {
	args := m.Called(ctx, collection, id, fields, pre)
	return args.Error(0)
}

func (m *mockStore) Name() string { return "mock" }

func (m *mockStore) Close() error { return nil }

func TestWriteFailurePropagates(t *testing.T) {
	store := &mockStore{}
	denied := errors.New("permission denied")
	store.On("Update", mock.Anything, "requests", "r1", mock.Anything, mock.Anything).Return(denied)

	svc := NewSyncService(store, nil, nil)
	err := svc.AcceptRequest(context.Background(), "r1", guideA)

	require.Error(t, err)
	assert.True(t, errors.Is(err, denied))
	store.AssertExpectations(t)
}

func TestWriteUsesStatusPrecondition(t *testing.T) {
	store := &mockStore{}
	store.On("Update", mock.Anything, "sosAlerts", "a1", mock.MatchedBy(func(f map[string]interface{}) bool {
		return f["status"] == "responding" && f["respondingGuideId"] == "guide-a"
	}), &interfaces.Precondition{Fields: []interfaces.FieldExpectation{{Field: "status", In: []string{"active"}}}}).Return(nil)

	svc := NewSyncService(store, nil, nil)
	require.NoError(t, svc.RespondToSOS(context.Background(), "a1", guideA))
	store.AssertExpectations(t)
}

func TestAttachFailureReturnsError(t *testing.T) {
	store := &mockStore{}
	store.On("Listen", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	svc := NewSyncService(store, nil, nil)
	sub, err := svc.SubscribeToRequests(context.Background(), func([]*models.TouristRequest) {})
	assert.Nil(t, sub)
	assert.Error(t, err)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveMutation(collection, status, result string) {
	m.Called(collection, status, result)
}

func (m *mockRecorder) SubscriptionOpened(collection string) { m.Called(collection) }

func (m *mockRecorder) SubscriptionClosed(collection string) { m.Called(collection) }

func TestRecorderSeesWritesAndSubscriptions(t *testing.T) {
	store := memory.NewDocumentStore()
	defer store.Close()
	seedRequest(store, "r1", "pending", t0)

	rec := &mockRecorder{}
	rec.On("SubscriptionOpened", "requests").Once()
	rec.On("SubscriptionClosed", "requests").Once()
	rec.On("ObserveMutation", "requests", "accepted", "ok").Once()
	rec.On("ObserveMutation", "requests", "accepted", "conflict").Once()

	svc := NewSyncService(store, nil, nil, WithRecorder(rec))
	sub, err := svc.SubscribeToRequests(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.AcceptRequest(context.Background(), "r1", guideA))
	require.Error(t, svc.AcceptRequest(context.Background(), "r1", guideB))

	sub.Close()
	sub.Close()
	rec.AssertExpectations(t)
}

func TestPendingListLeavesOutUndatedRequests(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedRequest(store, "old", "pending", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	seedRequest(store, "newer", "pending", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	store.Insert("requests", "undated", map[string]interface{}{"status": "pending", "touristName": "No Date"})

	got := &collector[*models.TouristRequest]{}
	sub, err := svc.SubscribeToRequests(context.Background(), got.add)
	require.NoError(t, err)
	defer sub.Close()
	waitFor(t, func() bool { return got.count() >= 1 })

	items := got.last()
	require.Len(t, items, 2)
	assert.Equal(t, "newer", items[0].ID)
	assert.Equal(t, "old", items[1].ID)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt), "list must be newest first")
	}
}
