package googleai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	return c
}

func TestClient_CreateEmbedding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, defaultModel)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.1,0.2,0.3]}]}`))
	})

	vec, err := c.CreateEmbedding(context.Background(), "credential stuffing")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClient_CreateEmbedding_NoEmbeddings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	})

	_, err := c.CreateEmbedding(context.Background(), "text")
	require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
}

func TestClient_CreateEmbedding_EmptyInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := c.CreateEmbedding(context.Background(), " \n ")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestClient_CreateEmbedding_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"model does not support embedContent","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.CreateEmbedding(context.Background(), "text")
	require.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestClient_Complete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"score\": 64}"}]}}]}`))
	})

	reply, err := c.Complete(context.Background(), "compare")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 64}`, reply)
}
