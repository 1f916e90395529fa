package auth

import (
	"context"
)

// StaticChecker maps fixed tokens to users. Used in tests and local runs
// without redis.
type StaticChecker struct {
	Sessions map[string]string
}

func NewStaticChecker() *StaticChecker {
	return &StaticChecker{
		Sessions: map[string]string{},
	}
}

func (c *StaticChecker) Identify(_ context.Context, token string) (string, error) {
	userID, ok := c.Sessions[token]
	if !ok {
		return "", ErrNoSession
	}
	return userID, nil
}
