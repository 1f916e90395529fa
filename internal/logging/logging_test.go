package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}

func (t *recordingTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *recordingTransport) Flush(_ time.Duration) bool { return true }

func (t *recordingTransport) FlushWithContext(_ context.Context) bool { return true }

func (t *recordingTransport) Close() {}

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("nonsense"))
}

func TestSentryHook(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	logger := logrus.New()
	logger.AddHook(NewSentryHook(hub, []logrus.Level{logrus.ErrorLevel}))

	logger.Warn("not forwarded")
	logger.WithField("pair", "u1/bench").Error("pr invariant violated")
	logger.WithError(errors.New("db down")).Error("atomic scope failed")

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.events, 2)
	assert.Equal(t, "pr invariant violated", transport.events[0].Message)
	assert.Equal(t, "u1/bench", transport.events[0].Extra["pair"])
	assert.Equal(t, sentry.LevelError, transport.events[0].Level)
	require.NotEmpty(t, transport.events[1].Exception)
}

func TestServiceFieldsHook(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.AddHook(NewServiceFieldsHook(logrus.Fields{
		"service": "traininglog",
		"env":     "development",
		"store":   "",
	}))

	logger.WithField("env", "override").Info("entry created")

	var logged map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, "traininglog", logged["service"])
	assert.Equal(t, "override", logged["env"])
	assert.NotContains(t, logged, "store")
	assert.Equal(t, "entry created", logged["msg"])
}
