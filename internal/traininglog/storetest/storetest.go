// Package storetest holds the behaviour every traininglog.Store backend must
// share. Backend packages run it against their own store from their tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/traininglog"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewStoreFunc returns an empty store. It is called once per subtest.
type NewStoreFunc func(t *testing.T) traininglog.Store

func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("rollback discards every write", func(t *testing.T) {
		testRollback(t, newStore(t))
	})
	t.Run("find by id", func(t *testing.T) {
		testFindByID(t, newStore(t))
	})
	t.Run("update keeps pr flag", func(t *testing.T) {
		testUpdate(t, newStore(t))
	})
	t.Run("max weight ordering", func(t *testing.T) {
		testMaxWeight(t, newStore(t))
	})
	t.Run("current pr", func(t *testing.T) {
		testCurrentPR(t, newStore(t))
	})
	t.Run("list filters and orders", func(t *testing.T) {
		testList(t, newStore(t))
	})
	t.Run("service keeps one pr per pair", func(t *testing.T) {
		testServiceScenario(t, newStore(t))
	})
	t.Run("service concurrent creates", func(t *testing.T) {
		testServiceConcurrentCreates(t, newStore(t))
	})
}

// NewEntry builds a valid entry with derived metrics filled in.
func NewEntry(userID, exerciseID string, weight float64, reps int, createdAt time.Time) *traininglog.Entry {
	e := &traininglog.Entry{
		ID:           gofakeit.UUID(),
		UserID:       userID,
		ExerciseID:   exerciseID,
		Weight:       weight,
		Reps:         reps,
		Sets:         gofakeit.Number(traininglog.MinSets, traininglog.MaxSets),
		Notes:        gofakeit.Sentence(4),
		Date:         createdAt,
		CreatedAt:    createdAt,
		Estimated1RM: traininglog.Estimated1RM(weight, reps),
	}
	e.Volume = traininglog.Volume(e.Weight, e.Reps, e.Sets)
	return e
}

func insert(t *testing.T, store traininglog.Store, entries ...*traininglog.Entry) {
	t.Helper()
	err := store.RunAtomic(context.Background(), func(ctx context.Context, tx traininglog.Tx) error {
		for _, e := range entries {
			if err := tx.Insert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func baseTime() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}

func testRollback(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	kept := NewEntry("u1", "bench", 100, 5, baseTime())
	insert(t, store, kept)

	dropped := NewEntry("u1", "bench", 120, 5, baseTime().Add(time.Minute))
	failure := errors.New("resolver failed")
	err := store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		require.NoError(t, tx.LockPair(ctx, "u1", "bench"))
		require.NoError(t, tx.Insert(ctx, dropped))
		require.NoError(t, tx.SetPR(ctx, kept.ID, true))

		seen, err := tx.FindByID(ctx, dropped.ID)
		require.NoError(t, err)
		assert.Equal(t, dropped.Weight, seen.Weight)
		return failure
	})
	require.ErrorIs(t, err, failure)

	_, err = store.FindByID(ctx, dropped.ID)
	assert.ErrorIs(t, err, traininglog.ErrNotFound)
	found, err := store.FindByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.False(t, found.IsPR)
}

func testFindByID(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	e := NewEntry("u1", "squat", 142.5, 3, baseTime())
	editedAt := baseTime().Add(time.Hour)
	e.IsEdited = true
	e.EditedAt = &editedAt
	insert(t, store, e)

	found, err := store.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.UserID, found.UserID)
	assert.Equal(t, e.ExerciseID, found.ExerciseID)
	assert.Equal(t, e.Weight, found.Weight)
	assert.Equal(t, e.Reps, found.Reps)
	assert.Equal(t, e.Sets, found.Sets)
	assert.Equal(t, e.Notes, found.Notes)
	assert.Equal(t, e.Volume, found.Volume)
	assert.Equal(t, e.Estimated1RM, found.Estimated1RM)
	assert.True(t, e.Date.Equal(found.Date))
	assert.True(t, e.CreatedAt.Equal(found.CreatedAt))
	assert.True(t, found.IsEdited)
	require.NotNil(t, found.EditedAt)
	assert.True(t, editedAt.Equal(*found.EditedAt))
	assert.False(t, found.IsPR)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, traininglog.ErrNotFound)

	err = store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		return tx.Insert(ctx, NewEntry("u1", "squat", 500.5, 3, baseTime()))
	})
	var validationErr *traininglog.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	err = store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		return tx.Delete(ctx, "missing")
	})
	assert.ErrorIs(t, err, traininglog.ErrNotFound)
}

func testUpdate(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	e := NewEntry("u1", "row", 60, 8, baseTime())
	insert(t, store, e)

	err := store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		if err := tx.SetPR(ctx, e.ID, true); err != nil {
			return err
		}
		changed := *e
		changed.Weight = 70
		changed.IsPR = false
		changed.IsEdited = true
		return tx.Update(ctx, &changed)
	})
	require.NoError(t, err)

	found, err := store.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, found.Weight)
	assert.True(t, found.IsPR)
	assert.True(t, found.IsEdited)

	err = store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		return tx.SetPR(ctx, "missing", true)
	})
	assert.ErrorIs(t, err, traininglog.ErrNotFound)
}

func testMaxWeight(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	light := NewEntry("u1", "bench", 100, 5, baseTime())
	lateHeavy := NewEntry("u1", "bench", 120, 5, baseTime().Add(2*time.Minute))
	earlyHeavy := NewEntry("u1", "bench", 120, 5, baseTime().Add(time.Minute))
	otherExercise := NewEntry("u1", "squat", 200, 5, baseTime())
	otherUser := NewEntry("u2", "bench", 300, 5, baseTime())
	insert(t, store, light, lateHeavy, earlyHeavy, otherExercise, otherUser)

	err := store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		best, err := tx.FindMaxWeightExcluding(ctx, "u1", "bench", "")
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, earlyHeavy.ID, best.ID)

		best, err = tx.FindMaxWeightExcluding(ctx, "u1", "bench", earlyHeavy.ID)
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, lateHeavy.ID, best.ID)

		best, err = tx.FindMaxWeightExcluding(ctx, "u9", "bench", "")
		require.NoError(t, err)
		assert.Nil(t, best)
		return nil
	})
	require.NoError(t, err)
}

func testCurrentPR(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	a := NewEntry("u1", "deadlift", 180, 1, baseTime())
	b := NewEntry("u1", "deadlift", 150, 1, baseTime().Add(time.Minute))
	insert(t, store, a, b)

	pr, err := store.FindCurrentPR(ctx, "u1", "deadlift")
	require.NoError(t, err)
	assert.Nil(t, pr)

	require.NoError(t, store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		return tx.SetPR(ctx, a.ID, true)
	}))
	pr, err = store.FindCurrentPR(ctx, "u1", "deadlift")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, a.ID, pr.ID)
	assert.True(t, pr.IsPR)

	// demote first, then promote, within one scope
	require.NoError(t, store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		if err := tx.SetPR(ctx, a.ID, false); err != nil {
			return err
		}
		return tx.SetPR(ctx, b.ID, true)
	}))
	pr, err = store.FindCurrentPR(ctx, "u1", "deadlift")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, b.ID, pr.ID)
}

func testList(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	yesterday := NewEntry("u1", "bench", 100, 5, day.Add(-24*time.Hour))
	single := NewEntry("u1", "bench", 110, 1, day)
	squat := NewEntry("u1", "squat", 90, 5, day.Add(time.Hour))
	otherUser := NewEntry("u2", "bench", 200, 5, day)
	insert(t, store, yesterday, single, squat, otherUser)
	require.NoError(t, store.RunAtomic(ctx, func(ctx context.Context, tx traininglog.Tx) error {
		return tx.SetPR(ctx, single.ID, true)
	}))

	entries, err := store.List(ctx, traininglog.ListParams{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{squat.ID, single.ID, yesterday.ID}, IDs(entries))

	entries, err = store.List(ctx, traininglog.ListParams{
		UserID:     "u1",
		ExerciseID: "bench",
		Order:      traininglog.OrderDateAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{yesterday.ID, single.ID}, IDs(entries))

	// 100x5 estimates 116.7, above the 110 single
	entries, err = store.List(ctx, traininglog.ListParams{
		UserID:     "u1",
		ExerciseID: "bench",
		Order:      traininglog.OrderEstimated1RMDesc,
		Limit:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{yesterday.ID}, IDs(entries))

	from, to := traininglog.DayBounds(day)
	entries, err = store.List(ctx, traininglog.ListParams{UserID: "u1", From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{squat.ID, single.ID}, IDs(entries))

	entries, err = store.List(ctx, traininglog.ListParams{UserID: "u1", PROnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{single.ID}, IDs(entries))

	entries, err = store.List(ctx, traininglog.ListParams{})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func newService(store traininglog.Store) *traininglog.Service {
	return traininglog.NewService(traininglog.ServiceParams{
		Store:       store,
		Metrics:     metrics.NewTestManager(),
		MaxAttempts: 10,
	})
}

func create(t *testing.T, svc *traininglog.Service, userID, exerciseID string, weight float64) *traininglog.CreateResult {
	t.Helper()
	reps, sets := 5, 3
	res, err := svc.CreateEntry(context.Background(), traininglog.CreateParams{
		UserID:     userID,
		ExerciseID: exerciseID,
		Weight:     &weight,
		Reps:       &reps,
		Sets:       &sets,
	})
	require.NoError(t, err)
	return res
}

func testServiceScenario(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	svc := newService(store)

	a := create(t, svc, "u1", "bench", 80)
	assert.True(t, a.IsNewPR)
	b := create(t, svc, "u1", "bench", 60)
	assert.False(t, b.IsNewPR)

	weight := 90.0
	edited, err := svc.EditEntry(ctx, b.Entry.ID, "u1", traininglog.EditFields{Weight: &weight})
	require.NoError(t, err)
	assert.True(t, edited.IsPR)

	pr, err := svc.CurrentPR(ctx, "u1", "bench")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, b.Entry.ID, pr.ID)

	require.NoError(t, svc.DeleteEntry(ctx, b.Entry.ID, "u1"))
	pr, err = svc.CurrentPR(ctx, "u1", "bench")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, a.Entry.ID, pr.ID)

	reports, err := svc.Verify(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Consistent())
}

func testServiceConcurrentCreates(t *testing.T, store traininglog.Store) {
	ctx := context.Background()
	svc := newService(store)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			weight := float64(100 + i*5)
			reps, sets := 3, 3
			_, err := svc.CreateEntry(ctx, traininglog.CreateParams{
				UserID:     "u1",
				ExerciseID: "press",
				Weight:     &weight,
				Reps:       &reps,
				Sets:       &sets,
			})
			if err != nil {
				errs <- fmt.Errorf("create %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	flagged, err := store.List(ctx, traininglog.ListParams{UserID: "u1", ExerciseID: "press", PROnly: true})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, float64(100+(n-1)*5), flagged[0].Weight)
}

func IDs(entries []traininglog.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
