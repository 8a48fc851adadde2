package utils

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Codes
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeRateLimited  = "RATE_LIMITED"
)

// Error Messages
const (
	ErrInvalidToken   = "invalid token"
	ErrInvalidInput   = "invalid input"
	ErrInternalServer = "internal server error"
	ErrUnauthorized   = "unauthorized"
	ErrNotFound       = "not found"
	ErrConflict       = "conflict"
	ErrTooManyRequest = "too many requests, slow down"
)

// Context Keys
const (
	ContextGuideID   = "user_id"
	ContextSession   = "session"
	ContextRequestID = "request_id"
)

// Event Types
const (
	EventRequestAccepted = "request_accepted"
	EventRequestRejected = "request_rejected"
	EventSOSResponding   = "sos_responding"
	EventSOSResolved     = "sos_resolved"
	EventSOSRaised       = "sos_raised"
)
