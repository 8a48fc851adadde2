package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guidedesk/internal/models"
	"guidedesk/pkg/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeBroadcaster) BroadcastSOS(alert *models.SOSAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert.ID)
}

func (f *fakeBroadcaster) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.alerts...)
}

type mockPush struct {
	mock.Mock
}

func (m *mockPush) SendNotification(ctx context.Context, req *push.NotificationRequest) (*push.NotificationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.NotificationResponse), args.Error(1)
}

func (m *mockPush) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	return m.Called(ctx, tokens, topic).Error(0)
}

func (m *mockPush) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	return m.Called(ctx, tokens, topic).Error(0)
}

func TestSOSWatcherAnnouncesOnlyNewActiveAlerts(t *testing.T) {
	store, svc := newTestService(t, nil)
	seedAlert(store, "existing", "active", t0)

	pusher := &mockPush{}
	pusher.On("SendNotification", mock.Anything, mock.MatchedBy(func(r *push.NotificationRequest) bool {
		return r.Topic == "sos-alerts" && r.Data["alertId"] == "fresh" && r.Title == "SOS: Tourist fresh"
	})).Return(&push.NotificationResponse{Success: true}, nil).Once()

	hub := &fakeBroadcaster{}
	watcher := NewSOSWatcher(svc, hub, pusher, "sos-alerts", nil)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	waitFor(t, func() bool { return watcher.Status() == SubscriptionLive })

	seedAlert(store, "fresh", "active", t0.Add(time.Minute))
	waitFor(t, func() bool { return len(hub.ids()) == 1 })
	assert.Equal(t, []string{"fresh"}, hub.ids())

	// A status change on a known alert is not a new alert.
	require.NoError(t, svc.RespondToSOS(context.Background(), "fresh", guideA))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"fresh"}, hub.ids())

	pusher.AssertExpectations(t)
}

func TestSOSWatcherIgnoresRespondingArrivals(t *testing.T) {
	store, svc := newTestService(t, nil)
	hub := &fakeBroadcaster{}
	watcher := NewSOSWatcher(svc, hub, nil, "", nil)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()
	waitFor(t, func() bool { return watcher.Status() == SubscriptionLive })

	seedAlert(store, "a1", "responding", t0)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, hub.ids())
}

func TestSOSWatcherPushFailureIsNotFatal(t *testing.T) {
	store, svc := newTestService(t, nil)
	pusher := &mockPush{}
	pusher.On("SendNotification", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	hub := &fakeBroadcaster{}
	watcher := NewSOSWatcher(svc, hub, pusher, "sos-alerts", nil)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()
	waitFor(t, func() bool { return watcher.Status() == SubscriptionLive })

	seedAlert(store, "a1", "active", t0)
	seedAlert(store, "a2", "active", t0.Add(time.Minute))
	waitFor(t, func() bool { return len(hub.ids()) == 2 })
	assert.Equal(t, SubscriptionLive, watcher.Status())
}

func TestSOSWatcherStop(t *testing.T) {
	store, svc := newTestService(t, nil)
	watcher := NewSOSWatcher(svc, nil, nil, "", nil)
	require.NoError(t, watcher.Start(context.Background()))

	watcher.Stop()
	assert.Equal(t, SubscriptionClosed, watcher.Status())
	assert.Equal(t, 0, store.ListenerCount())
}

type countingAnnouncements struct {
	mu sync.Mutex
	n  int
}

func (c *countingAnnouncements) SOSAnnounced() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingAnnouncements) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSOSWatcherCountsAnnouncements(t *testing.T) {
	store, svc := newTestService(t, nil)
	counter := &countingAnnouncements{}
	watcher := NewSOSWatcher(svc, nil, nil, "", nil).CountWith(counter)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()
	waitFor(t, func() bool { return watcher.Status() == SubscriptionLive })

	seedAlert(store, "a1", "active", t0)
	waitFor(t, func() bool { return counter.count() == 1 })
}
