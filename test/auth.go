//go:build integration_test || all_tests

package test

import (
	"context"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redis/v8"
)

// newSession stores a session the way the login service does and returns
// its bearer token.
func newSession(ctx context.Context, rdb *redis.Client, userID string, createdAt time.Time) (string, error) {
	token := gofakeit.UUID()
	err := rdb.HSet(ctx, "traininglog-session||"+token,
		"user_id", userID,
		"created_at", strconv.FormatInt(createdAt.Unix(), 10),
	).Err()
	return token, err
}
