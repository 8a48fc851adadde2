package screens

import (
	"context"
	"fmt"

	"guidedesk/internal/auth"
	"guidedesk/internal/models"
	"guidedesk/internal/services"
	"guidedesk/pkg/logger"
)

// SOSItem is an alert plus the actions the current guide is offered on it.
type SOSItem struct {
	*models.SOSAlert
	CanRespond bool `json:"canRespond"`
	CanResolve bool `json:"canResolve"`
}

// SOSController drives the emergency-alerts screen.
type SOSController struct {
	sync    services.SyncService
	session auth.Session
	list    *liveList[*models.SOSAlert]
}

func NewSOSController(sync services.SyncService, session auth.Session, view View, log *logger.Logger) *SOSController {
	if log == nil {
		log = logger.Discard()
	}
	reporter := &errorReporter{screen: ScreenSOS, guide: session.UID, logger: log, view: view}

	return &SOSController{
		sync:    sync,
		session: session,
		list: &liveList[*models.SOSAlert]{
			screen:   ScreenSOS,
			view:     view,
			reporter: reporter,
			present: func(alerts []*models.SOSAlert) interface{} {
				return sosItems(alerts, session.UID)
			},
		},
	}
}

func sosItems(alerts []*models.SOSAlert, guideID string) []SOSItem {
	items := make([]SOSItem, 0, len(alerts))
	for _, alert := range alerts {
		items = append(items, SOSItem{
			SOSAlert:   alert,
			CanRespond: alert.Status == models.SOSStatusActive,
			CanResolve: alert.IsRespondedBy(guideID),
		})
	}
	return items
}

func (c *SOSController) Screen() Screen {
	return ScreenSOS
}

func (c *SOSController) Open(ctx context.Context) error {
	if c.session.IsZero() {
		return services.ErrMissingSession
	}
	if err := c.list.begin(); err != nil {
		return err
	}

	sub, err := c.sync.SubscribeToSOSAlerts(ctx, c.list.replace, services.WithStatusHandler(c.list.statusChanged))
	if err != nil {
		c.list.abort()
		c.list.reporter.report(ActionSubscribe, "", err)
		return err
	}
	c.list.attach(sub.Close)
	return nil
}

func (c *SOSController) Close() {
	c.list.close()
}

func (c *SOSController) Refresh() {
	c.list.refresh()
}

func (c *SOSController) State() State {
	return c.list.state()
}

func (c *SOSController) Items() []SOSItem {
	return sosItems(c.list.snapshot(), c.session.UID)
}

func (c *SOSController) Respond(ctx context.Context, alertID string) error {
	return c.run(ActionRespondSOS, alertID, func() error {
		return c.sync.RespondToSOS(ctx, alertID, c.session)
	})
}

// Resolve is only offered to the guide responding to the alert.
func (c *SOSController) Resolve(ctx context.Context, alertID string) error {
	return c.run(ActionResolveSOS, alertID, func() error {
		if !c.canResolve(alertID) {
			return ErrNotAllowed
		}
		return c.sync.ResolveSOS(ctx, alertID, c.session)
	})
}

func (c *SOSController) Dispatch(ctx context.Context, action, id string) error {
	switch action {
	case ActionRespondSOS:
		return c.Respond(ctx, id)
	case ActionResolveSOS:
		return c.Resolve(ctx, id)
	}
	return fmt.Errorf("%w: %s on %s", ErrUnknownAction, action, ScreenSOS)
}

func (c *SOSController) canResolve(alertID string) bool {
	for _, alert := range c.list.snapshot() {
		if alert.ID == alertID {
			return alert.IsRespondedBy(c.session.UID)
		}
	}
	return false
}

func (c *SOSController) run(action, id string, fn func() error) error {
	if !c.list.isOpen() {
		return ErrNotOpen
	}
	if err := fn(); err != nil {
		c.list.reporter.report(action, id, err)
		return err
	}
	return nil
}
