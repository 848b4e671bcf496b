package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "Capital of France?", req.Prompt)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{Response: "Paris.", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	got, err := client.Generate(context.Background(), "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", got)
}

func TestOllamaClient_GenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	_, err := client.Generate(context.Background(), "hello")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaClient_GenerateConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	_, err := client.Generate(context.Background(), "hello")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaClient_GenerateFirstByteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewOllamaClient(srv.URL, "test-model", 50*time.Millisecond)
	_, err := client.Generate(context.Background(), "hello")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestOllamaClient_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"response":"The capital ","done":false}`)
		fmt.Fprintln(w, `{"response":"is Paris.","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	ch, err := client.GenerateStream(context.Background(), "Capital of France?")
	require.NoError(t, err)

	var texts []string
	sawDone := false
	for f := range ch {
		require.NoError(t, f.Err)
		if f.Done {
			sawDone = true
			continue
		}
		texts = append(texts, f.Text)
	}

	assert.Equal(t, []string{"The capital ", "is Paris."}, texts)
	assert.True(t, sawDone, "terminal fragment carries the done marker")
	assert.Equal(t, "The capital is Paris.", strings.Join(texts, ""))
}

func TestOllamaClient_GenerateStreamSkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"response":"hello","done":false}`)
		fmt.Fprintln(w, `garbage line`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	ch, err := client.GenerateStream(context.Background(), "hi")
	require.NoError(t, err)

	var texts []string
	for f := range ch {
		require.NoError(t, f.Err)
		if f.Text != "" {
			texts = append(texts, f.Text)
		}
	}
	assert.Equal(t, []string{"hello"}, texts)
}

func TestOllamaClient_GenerateStreamTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
		// Body ends without a done marker.
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	ch, err := client.GenerateStream(context.Background(), "hi")
	require.NoError(t, err)

	var last Fragment
	for f := range ch {
		last = f
	}
	require.Error(t, last.Err)
	assert.ErrorIs(t, last.Err, ErrUnavailable)
}

func TestOllamaClient_GenerateStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model", time.Second)
	_, err := client.GenerateStream(context.Background(), "hi")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classify(fmt.Errorf("boom")), ErrUnavailable)
}
