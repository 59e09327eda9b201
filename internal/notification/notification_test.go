package notification_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/idpkit/idp/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	var gotAuthorization, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthorization = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	gateway := notification.NewGateway()
	err := gateway.Notify(context.Background(), server.URL, "notification_token",
		map[string]any{"auth_req_id": "random_id"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer notification_token", gotAuthorization)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"auth_req_id": "random_id"}`, string(gotBody))
}

func TestNotify_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway := notification.NewGateway()
	err := gateway.Notify(context.Background(), server.URL, "token", map[string]any{})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestNotify_ServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gateway := notification.NewGateway()
	err := gateway.Notify(context.Background(), server.URL, "token", map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "5xx responses are retried")
}

func TestNotify_GivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gateway := notification.NewGateway()
	gateway.MaxTries = 2
	err := gateway.Notify(context.Background(), server.URL, "token", map[string]any{})

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
