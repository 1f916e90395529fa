package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "traininglog-session||"
)

// SessionChecker reads sessions from redis. A session is a hash under
// sessionKeyPrefix+token with the fields user_id and created_at (unix seconds).
type SessionChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewSessionChecker(ttl time.Duration, redisClient *redis.Client) *SessionChecker {
	return &SessionChecker{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

func (c *SessionChecker) Identify(ctx context.Context, token string) (string, error) {
	cmd := c.redisClient.HGetAll(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	session := cmd.Val()
	userID := session["user_id"]
	if userID == "" {
		return "", ErrNoSession
	}

	createdAtUnix, err := strconv.ParseInt(session["created_at"], 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse session created_at: %w", err)
	}
	if time.Since(time.Unix(createdAtUnix, 0)) > c.ttl {
		return "", ErrSessionExpired
	}

	return userID, nil
}
