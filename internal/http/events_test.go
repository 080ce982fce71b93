package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsFeedBroadcastsReviewActivity(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.register(t, "Ann", "ann@example.com", "secret1")
	userToken := env.login(t, "ann@example.com", "secret1")
	adminToken := env.login(t, "admin@kyc.com", "admin123")

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+adminToken)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/admin/events", header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	// registration is processed by the hub goroutine
	time.Sleep(100 * time.Millisecond)

	rec := env.submit(t, userToken, "id.pdf", "pdf")
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event eventResponse
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "submitted", event.Type)
	assert.Equal(t, "pending", event.Submission.Status)
	assert.False(t, event.At.IsZero())
}

func TestEventsFeedRejectsNonAdmins(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.register(t, "Ann", "ann@example.com", "secret1")
	userToken := env.login(t, "ann@example.com", "secret1")

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+userToken)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/admin/events", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type stalledReviewer struct {
	delay time.Duration
}

func (s stalledReviewer) Send([]byte) error {
	time.Sleep(s.delay)
	return nil
}

func (stalledReviewer) Close() {}

func TestSubmitDoesNotWaitOnSlowReviewers(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.hub.Register(EventsTopic, stalledReviewer{delay: 2 * time.Second})

	for i, email := range []string{"ann@example.com", "bob@example.com", "cat@example.com"} {
		env.register(t, "Reviewer Load", email, "secret1")
		token := env.login(t, email, "secret1")

		start := time.Now()
		rec := env.submit(t, token, "id.png", "png")
		elapsed := time.Since(start)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Less(t, elapsed, 500*time.Millisecond, "submission %d", i)
	}
}
