package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guidedesk/internal/models"
	"guidedesk/pkg/logger"
	"guidedesk/pkg/push"
)

// SOSBroadcaster delivers an in-app announcement to every connected guide.
type SOSBroadcaster interface {
	BroadcastSOS(alert *models.SOSAlert)
}

// AnnouncementCounter counts SOS announcements.
type AnnouncementCounter interface {
	SOSAnnounced()
}

// SOSWatcher keeps one service-wide SOS subscription and announces alerts
// that newly appear as active, so guides hear about them without the SOS
// screen open.
type SOSWatcher struct {
	syncService SyncService
	broadcaster SOSBroadcaster
	push        push.PushProvider
	topic       string
	logger      *logger.Logger
	pushTimeout time.Duration
	counter     AnnouncementCounter

	mu     sync.Mutex
	seen   map[string]struct{}
	primed bool
	sub    *Subscription[*models.SOSAlert]
}

// NewSOSWatcher builds a watcher. broadcaster and provider may each be nil.
func NewSOSWatcher(syncService SyncService, broadcaster SOSBroadcaster, provider push.PushProvider, topic string, log *logger.Logger) *SOSWatcher {
	if log == nil {
		log = logger.Discard()
	}
	return &SOSWatcher{
		syncService: syncService,
		broadcaster: broadcaster,
		push:        provider,
		topic:       topic,
		logger:      log.WithField("component", "sos_watcher"),
		pushTimeout: 10 * time.Second,
		seen:        make(map[string]struct{}),
	}
}

// CountWith must be called before Start.
func (w *SOSWatcher) CountWith(counter AnnouncementCounter) *SOSWatcher {
	w.counter = counter
	return w
}

func (w *SOSWatcher) Start(ctx context.Context) error {
	sub, err := w.syncService.SubscribeToSOSAlerts(ctx, w.handle, WithStatusHandler(func(status SubscriptionStatus, err error) {
		entry := w.logger.WithField("status", string(status))
		if err != nil {
			entry.WithError(err).Error("SOS watcher subscription changed state")
			return
		}
		entry.Info("SOS watcher subscription changed state")
	}))
	if err != nil {
		return fmt.Errorf("failed to start SOS watcher: %w", err)
	}

	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()
	return nil
}

// Status reports the underlying subscription state.
func (w *SOSWatcher) Status() SubscriptionStatus {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()

	if sub == nil {
		return SubscriptionConnecting
	}
	return sub.Status()
}

func (w *SOSWatcher) Stop() {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (w *SOSWatcher) handle(alerts []*models.SOSAlert) {
	w.mu.Lock()
	var fresh []*models.SOSAlert
	current := make(map[string]struct{}, len(alerts))
	for _, alert := range alerts {
		current[alert.ID] = struct{}{}
		if _, ok := w.seen[alert.ID]; ok {
			continue
		}
		if w.primed && alert.Status == models.SOSStatusActive {
			fresh = append(fresh, alert)
		}
	}
	// Alerts only leave the result set by resolving, and never come back.
	w.seen = current
	w.primed = true
	w.mu.Unlock()

	for _, alert := range fresh {
		w.announce(alert)
	}
}

func (w *SOSWatcher) announce(alert *models.SOSAlert) {
	w.logger.LogSOSEvent(alert.ID, "raised", "", map[string]interface{}{
		"location": alert.Location,
	})

	if w.counter != nil {
		w.counter.SOSAnnounced()
	}
	if w.broadcaster != nil {
		w.broadcaster.BroadcastSOS(alert)
	}

	if w.push == nil || w.topic == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.pushTimeout)
	defer cancel()

	_, err := w.push.SendNotification(ctx, sosNotification(alert, w.topic))
	if err != nil {
		w.logger.WithField("sos_alert_id", alert.ID).WithError(err).Error("Failed to send SOS push notification")
	}
}

func sosNotification(alert *models.SOSAlert, topic string) *push.NotificationRequest {
	title := "SOS"
	if alert.TouristName != "" {
		title = "SOS: " + alert.TouristName
	}
	body := alert.Location
	if alert.Message != "" {
		body = alert.Message + " (" + alert.Location + ")"
	}

	return &push.NotificationRequest{
		Topic: topic,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":     "sos_raised",
			"alertId":  alert.ID,
			"location": alert.Location,
		},
		Android: &push.AndroidConfig{Priority: "high", ChannelID: "sos"},
		IOS:     &push.IOSConfig{Sound: "default"},
	}
}
