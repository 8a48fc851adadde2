package screens

import (
	"context"
	"errors"
	"testing"
	"time"

	"guidedesk/internal/auth"
	"guidedesk/internal/models"
	"guidedesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardRendersPendingNewestFirst(t *testing.T) {
	store, svc := newTestSync(t, nil)
	seedRequest(store, "old", "pending", t0)
	seedRequest(store, "new", "pending", t0.Add(time.Hour))
	seedRequest(store, "done", "accepted", t0.Add(2*time.Hour))

	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()

	waitFor(t, func() bool { return view.last().Count == 2 })

	state := view.last()
	assert.Equal(t, ScreenDashboard, state.Screen)
	assert.Equal(t, services.SubscriptionLive, state.Status)

	items := state.Items.([]*models.TouristRequest)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "old", items[1].ID)
}

func TestDashboardAcceptRemovesRow(t *testing.T) {
	store, svc := newTestSync(t, nil)
	seedRequest(store, "r1", "pending", t0)
	seedRequest(store, "r2", "pending", t0.Add(time.Minute))

	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()
	waitFor(t, func() bool { return dash.State().Count == 2 })

	require.NoError(t, dash.Dispatch(context.Background(), ActionAcceptRequest, "r1"))
	waitFor(t, func() bool { return dash.State().Count == 1 })

	assert.Equal(t, "r2", dash.Requests()[0].ID)
	assert.Empty(t, view.noticeList())

	data, ok := store.Get("requests", "r1")
	require.True(t, ok)
	assert.Equal(t, "accepted", data["status"])
	assert.Equal(t, "guide-a", data["guideId"])
}

func TestDashboardConflictBecomesNotice(t *testing.T) {
	store, svc := newTestSync(t, nil)
	seedRequest(store, "r1", "pending", t0)

	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()
	waitFor(t, func() bool { return dash.State().Count == 1 })

	// Another guide gets there first.
	require.NoError(t, svc.RejectRequest(context.Background(), "r1", guideB))

	err := dash.Accept(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrConflict))

	notices := view.noticeList()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].Kind)
	assert.Equal(t, ActionAcceptRequest, notices[0].Action)
	assert.Equal(t, "r1", notices[0].ID)
	assert.Equal(t, "This request was already handled by another guide.", notices[0].Message)
}

func TestDashboardRequiresSession(t *testing.T) {
	_, svc := newTestSync(t, nil)
	dash := NewDashboardController(svc, auth.Session{}, &recordingView{}, nil)

	assert.ErrorIs(t, dash.Open(context.Background()), services.ErrMissingSession)
}

func TestDashboardActionsNeedOpenScreen(t *testing.T) {
	_, svc := newTestSync(t, nil)
	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)

	assert.ErrorIs(t, dash.Accept(context.Background(), "r1"), ErrNotOpen)
	assert.Empty(t, view.noticeList())
}

func TestDashboardUnknownAction(t *testing.T) {
	_, svc := newTestSync(t, nil)
	dash := NewDashboardController(svc, guideA, &recordingView{}, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()

	assert.ErrorIs(t, dash.Dispatch(context.Background(), ActionRespondSOS, "a1"), ErrUnknownAction)
}

func TestDashboardCloseStopsRendering(t *testing.T) {
	store, svc := newTestSync(t, nil)
	seedRequest(store, "r1", "pending", t0)

	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	waitFor(t, func() bool { return dash.State().Count == 1 })

	dash.Close()
	renders := view.renders()

	seedRequest(store, "r2", "pending", t0.Add(time.Minute))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, renders, view.renders())
	assert.Equal(t, services.SubscriptionClosed, dash.State().Status)
	assert.Equal(t, 0, store.ListenerCount())
	assert.ErrorIs(t, dash.Open(context.Background()), ErrNotOpen)
}

func TestDashboardListenerErrorIsReported(t *testing.T) {
	store, svc := newTestSync(t, nil)
	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()
	waitFor(t, func() bool { return dash.State().Status == services.SubscriptionLive })

	store.FailListeners("requests", errors.New("permission denied"))
	waitFor(t, func() bool { return len(view.noticeList()) == 1 })

	notice := view.noticeList()[0]
	assert.Equal(t, ActionSubscribe, notice.Action)
	assert.Equal(t, "Live updates are unavailable", notice.Message)
	assert.Equal(t, services.SubscriptionError, view.last().Status)
}

func TestDashboardRefreshRerenders(t *testing.T) {
	_, svc := newTestSync(t, nil)
	view := &recordingView{}
	dash := NewDashboardController(svc, guideA, view, nil)
	require.NoError(t, dash.Open(context.Background()))
	defer dash.Close()
	waitFor(t, func() bool { return dash.State().Status == services.SubscriptionLive })

	before := view.renders()
	dash.Refresh()
	assert.Equal(t, before+1, view.renders())
}
