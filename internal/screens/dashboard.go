package screens

import (
	"context"
	"fmt"

	"guidedesk/internal/auth"
	"guidedesk/internal/models"
	"guidedesk/internal/services"
	"guidedesk/pkg/logger"
)

// DashboardController drives the pending-requests screen.
type DashboardController struct {
	sync    services.SyncService
	session auth.Session
	list    *liveList[*models.TouristRequest]
}

func NewDashboardController(sync services.SyncService, session auth.Session, view View, log *logger.Logger) *DashboardController {
	if log == nil {
		log = logger.Discard()
	}
	reporter := &errorReporter{screen: ScreenDashboard, guide: session.UID, logger: log, view: view}

	return &DashboardController{
		sync:    sync,
		session: session,
		list: &liveList[*models.TouristRequest]{
			screen:   ScreenDashboard,
			view:     view,
			reporter: reporter,
			present: func(items []*models.TouristRequest) interface{} {
				return items
			},
		},
	}
}

func (c *DashboardController) Screen() Screen {
	return ScreenDashboard
}

func (c *DashboardController) Open(ctx context.Context) error {
	if c.session.IsZero() {
		return services.ErrMissingSession
	}
	if err := c.list.begin(); err != nil {
		return err
	}

	sub, err := c.sync.SubscribeToRequests(ctx, c.list.replace, services.WithStatusHandler(c.list.statusChanged))
	if err != nil {
		c.list.abort()
		c.list.reporter.report(ActionSubscribe, "", err)
		return err
	}
	c.list.attach(sub.Close)
	return nil
}

func (c *DashboardController) Close() {
	c.list.close()
}

// Refresh re-renders the current list. The list is already live, so there is
// nothing to fetch.
func (c *DashboardController) Refresh() {
	c.list.refresh()
}

func (c *DashboardController) State() State {
	return c.list.state()
}

func (c *DashboardController) Requests() []*models.TouristRequest {
	return c.list.snapshot()
}

func (c *DashboardController) Accept(ctx context.Context, requestID string) error {
	return c.run(ActionAcceptRequest, requestID, func() error {
		return c.sync.AcceptRequest(ctx, requestID, c.session)
	})
}

func (c *DashboardController) Reject(ctx context.Context, requestID string) error {
	return c.run(ActionRejectRequest, requestID, func() error {
		return c.sync.RejectRequest(ctx, requestID, c.session)
	})
}

func (c *DashboardController) Dispatch(ctx context.Context, action, id string) error {
	switch action {
	case ActionAcceptRequest:
		return c.Accept(ctx, id)
	case ActionRejectRequest:
		return c.Reject(ctx, id)
	}
	return fmt.Errorf("%w: %s on %s", ErrUnknownAction, action, ScreenDashboard)
}

func (c *DashboardController) run(action, id string, fn func() error) error {
	if !c.list.isOpen() {
		return ErrNotOpen
	}
	if err := fn(); err != nil {
		c.list.reporter.report(action, id, err)
		return err
	}
	return nil
}
