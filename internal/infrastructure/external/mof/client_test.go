package mof

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuchilin/storeledger/internal/application/port"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Endpoint:   srv.URL,
		AppID:      "test-app",
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}, zap.NewNop())
}

func TestClient_Verify(t *testing.T) {
	day := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	t.Run("verified", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "AB12345678", r.PostFormValue("invNum"))
			assert.Equal(t, "115/01/25", r.PostFormValue("invDate"))
			assert.Equal(t, "5678", r.PostFormValue("randomNumber"))
			assert.Equal(t, "test-app", r.PostFormValue("appID"))
			w.Write([]byte(`{"code":"200","msg":"ok"}`))
		})
		outcome := c.Verify(context.Background(), "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeVerified, outcome)
	})

	t.Run("not found", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"919","msg":"no such invoice"}`))
		})
		outcome := c.Verify(context.Background(), "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeNotFound, outcome)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		outcome := c.Verify(context.Background(), "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeUnavailable, outcome)
	})

	t.Run("malformed body is unavailable", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		})
		outcome := c.Verify(context.Background(), "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeUnavailable, outcome)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"code":"200","msg":"ok"}`))
		})
		outcome := c.Verify(context.Background(), "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeVerified, outcome)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		outcome := c.Verify(ctx, "AB12345678", day, "5678")
		assert.Equal(t, port.OutcomeUnavailable, outcome)
	})
}

func TestROCDateFormat(t *testing.T) {
	assert.Equal(t, "115/01/25", rocDate(time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "99/12/31", rocDate(time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC)))
}
