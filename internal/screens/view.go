package screens

import (
	"context"
	"errors"

	"guidedesk/internal/services"
)

type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenSOS       Screen = "sos"
)

const (
	ActionAcceptRequest = "accept_request"
	ActionRejectRequest = "reject_request"
	ActionRespondSOS    = "respond_sos"
	ActionResolveSOS    = "resolve_sos"
	ActionSubscribe     = "subscribe"
)

const (
	NoticeError = "error"
	NoticeInfo  = "info"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNotAllowed    = errors.New("action not allowed for this guide")
	ErrNotOpen       = errors.New("screen is not open")
)

// State is everything a view needs to draw a screen.
type State struct {
	Screen Screen                      `json:"screen"`
	Status services.SubscriptionStatus `json:"status"`
	Count  int                         `json:"count"`
	Items  interface{}                 `json:"items"`
}

// Notice is a transient, user-facing message such as a toast or banner.
type Notice struct {
	Kind    string `json:"kind"`
	Screen  Screen `json:"screen"`
	Action  string `json:"action"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// View is where controllers send output. Calls may come from store delivery
// goroutines.
type View interface {
	Render(state State)
	Notify(notice Notice)
}

// Controller is the common surface of the per-screen controllers.
type Controller interface {
	Screen() Screen
	Open(ctx context.Context) error
	Close()
	Refresh()
	State() State
	Dispatch(ctx context.Context, action, id string) error
}
