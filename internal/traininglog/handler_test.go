package traininglog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/traininglog/internal/auth"
	"github.com/2beens/traininglog/internal/traininglog"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string, redis_rate.Limit) (*redis_rate.Result, error) {
	return &redis_rate.Result{Allowed: 1, Remaining: 1}, nil
}

func requestAs(t *testing.T, userID, method, target string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	return req
}

// newTestRouter routes like the server does, with identity already resolved.
func newTestRouter(handler *traininglog.Handler) *mux.Router {
	r := mux.NewRouter()
	handler.SetupRoutes(r, allowAllLimiter{}, nil, 100)
	return r
}

func TestHandler_HandleCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	serviceMock := NewMockentriesService(ctrl)
	router := newTestRouter(traininglog.NewHandler(serviceMock))

	created := &traininglog.Entry{
		ID:         "entry-1",
		UserID:     "user-1",
		ExerciseID: "bench",
		Weight:     100,
		Reps:       5,
		Sets:       3,
		IsPR:       true,
	}
	serviceMock.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params traininglog.CreateParams) (*traininglog.CreateResult, error) {
			assert.Equal(t, "user-1", params.UserID)
			assert.Equal(t, "bench", params.ExerciseID)
			require.NotNil(t, params.Weight)
			assert.Equal(t, 100.0, *params.Weight)
			return &traininglog.CreateResult{Entry: created, IsNewPR: true}, nil
		}).Times(1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "POST", "/logs", map[string]any{
		"exerciseId": "bench",
		"weight":     100,
		"reps":       5,
		"sets":       3,
	}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp traininglog.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsNewPR)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, "entry-1", resp.Entry.ID)
}

func TestHandler_HandleCreate_Rejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	serviceMock := NewMockentriesService(ctrl)
	router := newTestRouter(traininglog.NewHandler(serviceMock))

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(t, "", "POST", "/logs", map[string]any{"exerciseId": "bench"}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(t, "user-1", "POST", "/logs", map[string]any{
			"userId":     "user-2",
			"exerciseId": "bench",
		}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("broken body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := requestAs(t, "user-1", "POST", "/logs", nil)
		req.Body = http.NoBody
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		serviceMock.EXPECT().
			CreateEntry(gomock.Any(), gomock.Any()).
			Return(nil, traininglog.NewValidationError("weight", "must be between 0 and 500"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(t, "user-1", "POST", "/logs", map[string]any{
			"exerciseId": "bench",
			"weight":     501,
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid weight")
	})
}

func TestHandler_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "not found", err: traininglog.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "forbidden", err: traininglog.ErrForbidden, expectedStatus: http.StatusForbidden},
		{
			name:           "transaction failed",
			err:            fmt.Errorf("%w: db down", traininglog.ErrTransactionFailed),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{name: "unexpected", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			serviceMock := NewMockentriesService(ctrl)
			router := newTestRouter(traininglog.NewHandler(serviceMock))

			serviceMock.EXPECT().GetEntry(gomock.Any(), "entry-1", "user-1").Return(nil, tc.err)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/entry-1", nil))
			assert.Equal(t, tc.expectedStatus, rec.Code)
		})
	}
}

func TestHandler_HandleEditAndDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	serviceMock := NewMockentriesService(ctrl)
	router := newTestRouter(traininglog.NewHandler(serviceMock))

	serviceMock.EXPECT().
		EditEntry(gomock.Any(), "entry-1", "user-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id, _ string, fields traininglog.EditFields) (*traininglog.Entry, error) {
			require.NotNil(t, fields.Reps)
			assert.Equal(t, 8, *fields.Reps)
			assert.Nil(t, fields.Weight)
			return &traininglog.Entry{ID: id, Reps: 8, IsEdited: true}, nil
		})
	serviceMock.EXPECT().DeleteEntry(gomock.Any(), "entry-1", "user-1").Return(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "PUT", "/logs/entry-1", map[string]any{"reps": 8}))
	require.Equal(t, http.StatusOK, rec.Code)
	var editResp traininglog.EditEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &editResp))
	require.NotNil(t, editResp.Entry)
	assert.True(t, editResp.Entry.IsEdited)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "DELETE", "/logs/entry-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var deleteResp traininglog.DeleteEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleteResp))
	assert.Equal(t, "entry-1", deleteResp.DeletedID)
}

func TestHandler_QueryParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	serviceMock := NewMockentriesService(ctrl)
	router := newTestRouter(traininglog.NewHandler(serviceMock))

	serviceMock.EXPECT().History(gomock.Any(), "user-1", "squat", traininglog.DefaultHistoryLimit).Return(nil, nil)
	serviceMock.EXPECT().History(gomock.Any(), "user-1", "squat", 12).Return([]traininglog.Entry{{ID: "a"}}, nil)
	serviceMock.EXPECT().
		ListByDay(gomock.Any(), "user-1", time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)).
		Return([]traininglog.Entry{{ID: "a"}, {ID: "b"}}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/history/squat", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp traininglog.EntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.NotNil(t, listResp.Entries)
	assert.Zero(t, listResp.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/history/squat?limit=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/history/squat?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/date/2024-05-03", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 2, listResp.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/date/03-05-2024", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Routes_WithService(t *testing.T) {
	env := newTestEnv(t)
	router := newTestRouter(traininglog.NewHandler(env.svc))

	post := func(weight float64) traininglog.CreateResult {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(t, "user-1", "POST", "/logs", map[string]any{
			"exerciseId": "deadlift",
			"weight":     weight,
			"reps":       3,
			"sets":       1,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp traininglog.CreateResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := post(140)
	assert.True(t, first.IsNewPR)
	second := post(150)
	assert.True(t, second.IsNewPR)
	third := post(120)
	assert.False(t, third.IsNewPR)

	currentPR := func() *traininglog.Entry {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/pr/deadlift", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp traininglog.CurrentPRResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.PR
	}
	pr := currentPR()
	require.NotNil(t, pr)
	assert.Equal(t, second.Entry.ID, pr.ID)

	// another user cannot touch the entry
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-2", "DELETE", "/logs/"+second.Entry.ID, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "DELETE", "/logs/"+second.Entry.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	pr = currentPR()
	require.NotNil(t, pr)
	assert.Equal(t, first.Entry.ID, pr.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/pr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var prs traininglog.EntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prs))
	require.Len(t, prs.Entries, 1)
	assert.Equal(t, first.Entry.ID, prs.Entries[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all traininglog.EntriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/1rm/deadlift", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary traininglog.OneRepMaxSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.InDelta(t, 140*(1+3.0/30), summary.Estimated1RM, 0.1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(t, "user-1", "GET", "/logs/pr/bench", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pr": null}`, rec.Body.String())
}
