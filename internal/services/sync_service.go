package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guidedesk/internal/auth"
	"guidedesk/internal/config"
	"guidedesk/internal/models"
	"guidedesk/internal/repositories/interfaces"
	"guidedesk/pkg/logger"
)

var (
	ErrMissingSession = errors.New("no signed-in guide")
	ErrMissingID      = errors.New("document id required")

	// Re-exported so callers need not import the repository layer.
	ErrNotFound = interfaces.ErrNotFound
	ErrConflict = interfaces.ErrConflict
)

type SyncService interface {
	// Live queries
	SubscribeToRequests(ctx context.Context, callback func([]*models.TouristRequest), opts ...SubscribeOption) (*Subscription[*models.TouristRequest], error)
	SubscribeToSOSAlerts(ctx context.Context, callback func([]*models.SOSAlert), opts ...SubscribeOption) (*Subscription[*models.SOSAlert], error)

	// Tourist request transitions
	AcceptRequest(ctx context.Context, requestID string, session auth.Session) error
	RejectRequest(ctx context.Context, requestID string, session auth.Session) error

	// SOS transitions
	RespondToSOS(ctx context.Context, alertID string, session auth.Session) error
	ResolveSOS(ctx context.Context, alertID string, session auth.Session) error
}

type syncService struct {
	store    interfaces.DocumentStore
	config   *config.SyncConfig
	logger   *logger.Logger
	audit    *logger.AuditLogger
	recorder Recorder
	now      func() time.Time
}

func NewSyncService(store interfaces.DocumentStore, cfg *config.SyncConfig, log *logger.Logger, opts ...Option) SyncService {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	if log == nil {
		log = logger.Discard()
	}

	s := &syncService{
		store:    store,
		config:   cfg,
		logger:   log.WithField("component", "sync"),
		audit:    logger.NewAuditLoggerFrom(log),
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *syncService) SubscribeToRequests(ctx context.Context, callback func([]*models.TouristRequest), opts ...SubscribeOption) (*Subscription[*models.TouristRequest], error) {
	query := interfaces.Query{
		Collection: s.config.RequestsCollection,
		Field:      "status",
		In:         []string{string(models.RequestStatusPending)},
		OrderBy:    "createdAt",
		Descending: true,
	}

	return subscribe(ctx, s, query, callback, requestFromDocument, opts)
}

func (s *syncService) SubscribeToSOSAlerts(ctx context.Context, callback func([]*models.SOSAlert), opts ...SubscribeOption) (*Subscription[*models.SOSAlert], error) {
	query := interfaces.Query{
		Collection: s.config.SOSCollection,
		Field:      "status",
		In:         []string{string(models.SOSStatusActive), string(models.SOSStatusResponding)},
		OrderBy:    "createdAt",
		Descending: true,
	}

	return subscribe(ctx, s, query, callback, sosAlertFromDocument, opts)
}

func subscribe[T any](
	ctx context.Context,
	s *syncService,
	query interfaces.Query,
	callback func([]T),
	mapDoc func(interfaces.Document, time.Time) T,
	opts []SubscribeOption,
) (*Subscription[T], error) {
	sub := newSubscription(callback, opts)
	log := s.logger.WithField("collection", query.Collection)

	onSnapshot := func(docs []interfaces.Document) {
		now := s.now()
		items := make([]T, 0, len(docs))
		for _, doc := range docs {
			items = append(items, mapDoc(doc, now))
		}
		sub.deliver(items)
	}

	onError := func(err error) {
		log.WithError(err).Error("Live query listener failed")
		sub.fail(err)
	}

	listener, err := s.store.Listen(ctx, query, onSnapshot, onError)
	if err != nil {
		log.WithError(err).Error("Failed to attach live query listener")
		return nil, fmt.Errorf("failed to subscribe to %s: %w", query.Collection, err)
	}
	s.recorder.SubscriptionOpened(query.Collection)
	sub.attach(&countedListener{
		Listener: listener,
		closed:   func() { s.recorder.SubscriptionClosed(query.Collection) },
	})

	log.Debug("Live query listener attached")
	return sub, nil
}

func (s *syncService) AcceptRequest(ctx context.Context, requestID string, session auth.Session) error {
	fields := map[string]interface{}{
		"status":     string(models.RequestStatusAccepted),
		"guideId":    session.UID,
		"acceptedAt": s.now(),
	}

	err := s.transition(ctx, s.config.RequestsCollection, requestID, session, fields, s.expect(string(models.RequestStatusPending)))
	if err != nil {
		return fmt.Errorf("failed to accept request %s: %w", requestID, err)
	}

	s.logger.LogRequestEvent(requestID, "accepted", session.UID, nil)
	return nil
}

func (s *syncService) RejectRequest(ctx context.Context, requestID string, session auth.Session) error {
	fields := map[string]interface{}{
		"status":     string(models.RequestStatusRejected),
		"guideId":    session.UID,
		"rejectedAt": s.now(),
	}

	err := s.transition(ctx, s.config.RequestsCollection, requestID, session, fields, s.expect(string(models.RequestStatusPending)))
	if err != nil {
		return fmt.Errorf("failed to reject request %s: %w", requestID, err)
	}

	s.logger.LogRequestEvent(requestID, "rejected", session.UID, nil)
	return nil
}

func (s *syncService) RespondToSOS(ctx context.Context, alertID string, session auth.Session) error {
	fields := map[string]interface{}{
		"status":            string(models.SOSStatusResponding),
		"respondingGuideId": session.UID,
		"responseTime":      s.now(),
	}

	err := s.transition(ctx, s.config.SOSCollection, alertID, session, fields, s.expect(string(models.SOSStatusActive)))
	if err != nil {
		return fmt.Errorf("failed to respond to SOS %s: %w", alertID, err)
	}

	s.logger.LogSOSEvent(alertID, "responding", session.UID, nil)
	return nil
}

func (s *syncService) ResolveSOS(ctx context.Context, alertID string, session auth.Session) error {
	fields := map[string]interface{}{
		"status":     string(models.SOSStatusResolved),
		"resolvedAt": s.now(),
	}

	pre := s.expect(string(models.SOSStatusActive), string(models.SOSStatusResponding))
	if s.config.ResolveResponderOnly {
		if pre == nil {
			pre = &interfaces.Precondition{}
		}
		pre.Fields = append(pre.Fields, interfaces.FieldExpectation{Field: "respondingGuideId", In: []string{session.UID}})
	}

	err := s.transition(ctx, s.config.SOSCollection, alertID, session, fields, pre)
	if err != nil {
		return fmt.Errorf("failed to resolve SOS %s: %w", alertID, err)
	}

	s.logger.LogSOSEvent(alertID, "resolved", session.UID, nil)
	return nil
}

// expect builds the status precondition for a transition, or nil when
// transitions are not enforced and the last writer wins.
func (s *syncService) expect(from ...string) *interfaces.Precondition {
	if !s.config.EnforceTransitions {
		return nil
	}
	return &interfaces.Precondition{
		Fields: []interfaces.FieldExpectation{{Field: "status", In: from}},
	}
}

func (s *syncService) transition(ctx context.Context, collection, id string, session auth.Session, fields map[string]interface{}, pre *interfaces.Precondition) error {
	if session.IsZero() {
		return ErrMissingSession
	}
	if id == "" {
		return ErrMissingID
	}

	status := fmt.Sprint(fields["status"])
	err := s.store.Update(ctx, collection, id, fields, pre)
	s.audit.LogMutation(collection, id, status, session.UID, err)
	s.recorder.ObserveMutation(collection, status, mutationResult(err))
	if err != nil {
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"collection":  collection,
			"document_id": id,
			"guide_id":    session.UID,
		}).WithError(err).Warn("Status write failed")
		return err
	}
	return nil
}
