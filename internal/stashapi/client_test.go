package stashapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Next(t *testing.T) {
	var gotCursor atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor.Store(r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"next_change_id": "42-42", "stashes": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.001, zerolog.Nop())

	envelope, err := client.Next(context.Background(), "41-41")
	require.NoError(t, err)
	assert.Equal(t, "42-42", envelope.NextChangeID)
	assert.Empty(t, envelope.Stashes)
	assert.Equal(t, "41-41", gotCursor.Load())
}

func TestClient_EmptyCursorOmitsParameter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("id"))
		_, _ = w.Write([]byte(`{"next_change_id": "1-1", "stashes": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.001, zerolog.Nop())
	_, err := client.Next(context.Background(), "")
	require.NoError(t, err)
}

func TestClient_ClientErrorIsFatal(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.001, zerolog.Nop())
	_, err := client.Next(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_ServerErrorRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"next_change_id": "1-1", "stashes": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.001, zerolog.Nop())
	envelope, err := client.Next(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1-1", envelope.NextChangeID)
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_MissingChangeIDIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stashes": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0.001, zerolog.Nop())
	_, err := client.Next(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next_change_id")
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"next_change_id": "1-1", "stashes": []}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, 0.001, zerolog.Nop())
	_, err := client.Next(ctx, "")
	assert.Error(t, err)
}
