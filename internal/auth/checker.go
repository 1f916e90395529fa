package auth

import (
	"context"
	"errors"
)

var (
	ErrNoSession      = errors.New("no session for token")
	ErrSessionExpired = errors.New("session expired")
)

var _ Checker = (*SessionChecker)(nil)
var _ Checker = (*StaticChecker)(nil)

// Checker resolves a bearer token to the user it was issued for. Sessions are
// issued elsewhere; this service only consumes them.
type Checker interface {
	Identify(ctx context.Context, token string) (userID string, err error)
}
