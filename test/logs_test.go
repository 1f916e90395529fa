//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/2beens/traininglog/internal/traininglog"
)

func (s *IntegrationTestSuite) login(ctx context.Context, userID string) string {
	token, err := newSession(ctx, s.redisClient, userID, time.Now())
	s.Require().NoError(err)
	return token
}

func (s *IntegrationTestSuite) do(ctx context.Context, token, method, path string, body any) (int, []byte) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reader)
	s.Require().NoError(err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) createEntry(ctx context.Context, token, exerciseID string, weight float64) traininglog.CreateResult {
	status, body := s.do(ctx, token, "POST", "/logs", map[string]any{
		"exerciseId": exerciseID,
		"weight":     weight,
		"reps":       5,
		"sets":       3,
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var res traininglog.CreateResult
	s.Require().NoError(json.Unmarshal(body, &res))
	return res
}

func (s *IntegrationTestSuite) currentPR(ctx context.Context, token, exerciseID string) *traininglog.Entry {
	status, body := s.do(ctx, token, "GET", "/logs/pr/"+exerciseID, nil)
	s.Require().Equal(http.StatusOK, status, string(body))

	var res traininglog.CurrentPRResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	return res.PR
}

func (s *IntegrationTestSuite) TestLogs_NoToken() {
	status, _ := s.do(context.Background(), "", "GET", "/logs/all", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *IntegrationTestSuite) TestLogs_ExpiredSession() {
	ctx := context.Background()
	token, err := newSession(ctx, s.redisClient, "old-user", time.Now().Add(-30*24*time.Hour))
	s.Require().NoError(err)

	status, _ := s.do(ctx, token, "GET", "/logs/all", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *IntegrationTestSuite) TestLogs_PRLifecycle() {
	ctx := context.Background()
	token := s.login(ctx, "lifter")

	first := s.createEntry(ctx, token, "bench", 100)
	s.True(first.IsNewPR)
	second := s.createEntry(ctx, token, "bench", 100)
	s.False(second.IsNewPR, "ties keep the earlier entry")
	third := s.createEntry(ctx, token, "bench", 110)
	s.True(third.IsNewPR)

	pr := s.currentPR(ctx, token, "bench")
	s.Require().NotNil(pr)
	s.Equal(third.Entry.ID, pr.ID)

	// edit the holder down, the earliest 100 takes over
	status, body := s.do(ctx, token, "PUT", "/logs/"+third.Entry.ID, map[string]any{"weight": 90})
	s.Require().Equal(http.StatusOK, status, string(body))
	pr = s.currentPR(ctx, token, "bench")
	s.Require().NotNil(pr)
	s.Equal(first.Entry.ID, pr.ID)

	status, _ = s.do(ctx, token, "DELETE", "/logs/"+first.Entry.ID, nil)
	s.Require().Equal(http.StatusOK, status)
	pr = s.currentPR(ctx, token, "bench")
	s.Require().NotNil(pr)
	s.Equal(second.Entry.ID, pr.ID)

	other := s.login(ctx, "someone-else")
	status, _ = s.do(ctx, other, "DELETE", "/logs/"+second.Entry.ID, nil)
	s.Equal(http.StatusForbidden, status)
	s.Nil(s.currentPR(ctx, other, "bench"))
}

func (s *IntegrationTestSuite) TestLogs_ConcurrentCreates() {
	ctx := context.Background()
	token := s.login(ctx, "racer")

	weights := []float64{60, 140, 80, 140, 100, 120, 90, 130, 70, 110}
	var wg sync.WaitGroup
	for _, w := range weights {
		wg.Add(1)
		go func(weight float64) {
			defer wg.Done()
			status, body := s.do(ctx, token, "POST", "/logs", map[string]any{
				"exerciseId": "squat",
				"weight":     weight,
				"reps":       3,
				"sets":       1,
			})
			s.Equal(http.StatusCreated, status, string(body))
		}(w)
	}
	wg.Wait()

	var flagged int
	err := s.dbPool.QueryRow(ctx,
		`SELECT count(*) FROM training_log_entry WHERE user_id = 'racer' AND exercise_id = 'squat' AND is_pr`,
	).Scan(&flagged)
	s.Require().NoError(err)
	s.Equal(1, flagged)

	pr := s.currentPR(ctx, token, "squat")
	s.Require().NotNil(pr)
	s.Equal(140.0, pr.Weight)

	status, body := s.do(ctx, token, "GET", "/logs/history/squat?limit=3", nil)
	s.Require().Equal(http.StatusOK, status)
	var history traininglog.EntriesResponse
	s.Require().NoError(json.Unmarshal(body, &history))
	s.Len(history.Entries, 3)
}
