// internal/common/nlp/client_test.go
package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/common/logger"
)

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}
}

func TestClient_Parse_QueryEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cheap laptop", body["text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ok": true,
			"intent": {"name": "search_product", "confidence": 0.91},
			"entities": [{"label": "PRODUCT", "text": "laptop"}],
			"features": {"noun_chunks": ["cheap laptop"]}
		}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	res, err := client.Parse(context.Background(), "cheap laptop")

	require.NoError(t, err)
	require.NotNil(t, res.Intent)
	assert.Equal(t, "search_product", res.Intent.Name)
	assert.InDelta(t, 0.91, res.Intent.Confidence, 1e-9)
	assert.Equal(t, []Entity{{Label: "PRODUCT", Text: "laptop"}}, res.Entities)
	assert.Equal(t, []string{"cheap laptop"}, res.NounChunks)
	assert.True(t, res.Usable())
}

func TestClient_Parse_FallsBackToLegacyOnlyOn404(t *testing.T) {
	var queryHits, parseHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/query":
			atomic.AddInt32(&queryHits, 1)
			http.NotFound(w, r)
		case "/parse":
			atomic.AddInt32(&parseHits, 1)
			w.Write([]byte(`{"ok": true, "result": {"intent": "greeting", "entities": [], "noun_chunks": []}}`))
		}
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))

	res, err := client.Parse(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "greeting", res.Intent.Name)

	_, err = client.Parse(context.Background(), "hello again")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&queryHits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&parseHits))
}

func TestClient_Parse_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true, "intent": "help", "entities": []}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	res, err := client.Parse(context.Background(), "help")

	require.NoError(t, err)
	assert.Equal(t, "help", res.Intent.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_Parse_ErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantErr      error
		wantAttempts int32
	}{
		{"client error is not retried", http.StatusBadRequest, `{"ok": false}`, ErrClientError, 1},
		{"persistent server error exhausts retries", http.StatusBadGateway, ``, ErrNLPUnavailable, 3},
		{"neither intent nor entities", http.StatusOK, `{"ok": true, "features": {}}`, ErrMalformedResponse, 1},
		{"invalid json", http.StatusOK, `not json`, ErrMalformedResponse, 1},
		{"service reported failure", http.StatusOK, `{"ok": false, "error": "model not loaded"}`, ErrNLPUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
			res, err := client.Parse(context.Background(), "anything")

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantAttempts, atomic.LoadInt32(&attempts))
		})
	}
}

func TestClient_Parse_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.Write([]byte(`{"ok": true, "intent": "help"}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Parse(ctx, "help")

	assert.ErrorIs(t, err, ErrNLPTimeout)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestIntent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Intent
	}{
		{"bare string", `"ask_price"`, Intent{Name: "ask_price"}},
		{"name and confidence", `{"name":"help","confidence":0.7}`, Intent{Name: "help", Confidence: 0.7}},
		{"label and score", `{"label":"greeting","score":0.4}`, Intent{Name: "greeting", Confidence: 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Intent
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
