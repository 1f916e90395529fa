package traininglog_test

import (
	"testing"
	"time"

	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/traininglog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPRCache_FillAfterInvalidateIsDropped(t *testing.T) {
	cache := traininglog.NewPRCache(1024*1024, time.Minute, metrics.NewTestManager())
	pair := traininglog.Pair{UserID: "u1", ExerciseID: "bench"}
	demoted := &traininglog.Entry{ID: "a", Weight: 80, IsPR: true}

	generation := cache.Generation(pair)
	cache.Invalidate(pair)
	cache.Set(pair, demoted, generation)
	_, ok := cache.Get(pair)
	assert.False(t, ok)

	cache.Set(pair, demoted, cache.Generation(pair))
	pr, ok := cache.Get(pair)
	require.True(t, ok)
	require.NotNil(t, pr)
	assert.Equal(t, "a", pr.ID)
}

func TestPRCache_CachesEmptyPair(t *testing.T) {
	cache := traininglog.NewPRCache(1024*1024, time.Minute, metrics.NewTestManager())
	pair := traininglog.Pair{UserID: "u1", ExerciseID: "bench"}

	cache.Set(pair, nil, cache.Generation(pair))
	pr, ok := cache.Get(pair)
	assert.True(t, ok)
	assert.Nil(t, pr)
}

func TestPRCache_SeparatorInIDs(t *testing.T) {
	cache := traininglog.NewPRCache(1024*1024, time.Minute, metrics.NewTestManager())
	left := traininglog.Pair{UserID: "a/b", ExerciseID: "c"}
	right := traininglog.Pair{UserID: "a", ExerciseID: "b/c"}

	cache.Set(left, &traininglog.Entry{ID: "left"}, cache.Generation(left))

	_, ok := cache.Get(right)
	assert.False(t, ok)
	pr, ok := cache.Get(left)
	require.True(t, ok)
	assert.Equal(t, "left", pr.ID)
}

func TestPRCache_Disabled(t *testing.T) {
	cache := traininglog.NewPRCache(1024*1024, 0, metrics.NewTestManager())
	require.Nil(t, cache)

	pair := traininglog.Pair{UserID: "u1", ExerciseID: "bench"}
	cache.Set(pair, &traininglog.Entry{ID: "a"}, cache.Generation(pair))
	cache.Invalidate(pair)
	_, ok := cache.Get(pair)
	assert.False(t, ok)
}
