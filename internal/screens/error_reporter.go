package screens

import (
	"errors"

	"guidedesk/internal/services"
	"guidedesk/pkg/logger"
)

// errorReporter is the single failure path for every screen: detail goes to
// the log, a short message goes to the view.
type errorReporter struct {
	screen Screen
	guide  string
	logger *logger.Logger
	view   View
}

func (r *errorReporter) report(action, id string, err error) {
	r.logger.WithFields(map[string]interface{}{
		"screen":      string(r.screen),
		"action":      action,
		"document_id": id,
		"guide_id":    r.guide,
	}).WithError(err).Error("Screen action failed")

	r.view.Notify(Notice{
		Kind:    NoticeError,
		Screen:  r.screen,
		Action:  action,
		ID:      id,
		Message: userMessage(action, err),
	})
}

func userMessage(action string, err error) string {
	switch {
	case errors.Is(err, services.ErrConflict):
		switch action {
		case ActionRespondSOS:
			return "Another guide is already responding to this emergency."
		case ActionResolveSOS:
			return "This emergency can no longer be resolved by you."
		default:
			return "This request was already handled by another guide."
		}
	case errors.Is(err, services.ErrNotFound):
		return "This item no longer exists."
	case errors.Is(err, services.ErrMissingSession):
		return "Please sign in again."
	case errors.Is(err, ErrNotAllowed):
		return "Only the responding guide can resolve this emergency."
	}

	switch action {
	case ActionAcceptRequest:
		return "Failed to accept request"
	case ActionRejectRequest:
		return "Failed to reject request"
	case ActionRespondSOS:
		return "Failed to respond to SOS"
	case ActionResolveSOS:
		return "Failed to resolve SOS"
	case ActionSubscribe:
		return "Live updates are unavailable"
	}
	return "Something went wrong"
}
