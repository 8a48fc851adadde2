package auth

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid token")

// Session identifies the signed-in guide. UID is opaque; nothing here
// validates its shape.
type Session struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

func (s Session) IsZero() bool {
	return s.UID == ""
}

// Verifier turns a bearer token into a Session.
type Verifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}
