package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipsmith/internal/logging"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New("test-key", "voice-a", 100, 16, 3, time.Millisecond, 5*time.Second, newTestLogger(t)).WithBaseURL(baseURL)
}

func TestSynthesizeWritesAudio(t *testing.T) {
	audio := []byte("this is definitely long enough audio data")
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		assert.Contains(t, r.URL.Path, "/v1/text-to-speech/voice-a")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotText, _ = body["text"].(string)
		w.Write(audio)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, newClient(t, srv.URL).Synthesize(context.Background(), "hello world", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
	assert.Equal(t, "hello world", gotText)
}

func TestSynthesizeTruncatesLongScript(t *testing.T) {
	var gotLen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		text, _ := body["text"].(string)
		gotLen.Store(int32(len(text)))
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	dest := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, newClient(t, srv.URL).Synthesize(context.Background(), string(long), dest))
	assert.Equal(t, int32(100), gotLen.Load())
}

func TestSynthesizeRejectsTinyResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio.mp3")
	err := newClient(t, srv.URL).Synthesize(context.Background(), "hi", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
	assert.Equal(t, int32(3), calls.Load(), "a tiny response counts as a failed attempt")
	assert.NoFileExists(t, dest)
}

func TestSynthesizeRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, newClient(t, srv.URL).Synthesize(context.Background(), "hi", dest))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSynthesizeSurfacesProviderDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"API key is invalid"}}`))
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is invalid")
}

func TestSynthesizeWithoutKey(t *testing.T) {
	c := New("", "voice-a", 100, 16, 3, time.Millisecond, time.Second, newTestLogger(t))
	assert.False(t, c.Configured())
	err := c.Synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "a.mp3"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
