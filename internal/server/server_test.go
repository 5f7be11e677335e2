package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipsmith/internal"
	"clipsmith/internal/fetch"
	"clipsmith/internal/logging"
	"clipsmith/internal/pipeline"
	"clipsmith/internal/tts"
	"clipsmith/internal/workspace"
)

// stubTranscoder fabricates outputs without running ffmpeg.
type stubTranscoder struct {
	duration float64
}

func (s *stubTranscoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return s.duration, nil
}

func (s *stubTranscoder) Normalize(ctx context.Context, in, out string, targetSeconds float64) error {
	return os.WriteFile(out, []byte("normalized"), 0o644)
}

func (s *stubTranscoder) ConcatStreamCopy(ctx context.Context, inputs []string, out string) error {
	return os.WriteFile(out, []byte("concatenated"), 0o644)
}

func (s *stubTranscoder) Mux(ctx context.Context, video, audio, out string) error {
	return os.WriteFile(out, []byte("final video"), 0o644)
}

func (s *stubTranscoder) Trim(ctx context.Context, in, out string, maxSeconds float64) error {
	return os.WriteFile(out, []byte("trimmed"), 0o644)
}

type testEnv struct {
	api     *httptest.Server
	clips   *httptest.Server
	wsm     *workspace.Manager
	workDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	workDir := filepath.Join(t.TempDir(), "work")
	cfg := internal.Config{
		Port:         "0",
		WorkDir:      workDir,
		MaxClips:     5,
		MaxDurationS: 60,
	}
	wsm, err := workspace.NewManager(workDir, time.Hour, log)
	require.NoError(t, err)

	fetcher := fetch.New(5*time.Second, 2, time.Millisecond, log)
	speech := tts.New("", "", 2500, 16, 2, time.Millisecond, time.Second, log)
	orch := pipeline.NewOrchestrator(cfg, &stubTranscoder{duration: 30}, fetcher, speech, log)

	srv := New(cfg, wsm, orch, nil, false, log)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	clips := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/missing/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("clip bytes"))
	}))
	t.Cleanup(clips.Close)

	return &testEnv{api: api, clips: clips, wsm: wsm, workDir: workDir}
}

func (e *testEnv) assembleBody(urls ...string) []byte {
	body, _ := json.Marshal(map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString([]byte("audio payload")),
		"video_urls":   urls,
	})
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.api.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["ttsConfigured"])
	assert.Contains(t, body, "diskUsageBytes")
	assert.Contains(t, body, "diskUsageMb")
}

func TestCleanupEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// Orphan workspace from a previous life of the process.
	orphan := filepath.Join(env.workDir, "deadbeef")
	require.NoError(t, os.MkdirAll(orphan, 0o755))

	resp, err := http.Post(env.api.URL+"/cleanup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cleaned", body["status"])
	assert.NoDirExists(t, orphan)
}

func TestAssembleReturnsVideo(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.api.URL+"/assemble", "application/json",
		bytes.NewReader(env.assembleBody(env.clips.URL+"/clip/0", env.clips.URL+"/clip/1")))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="short_`)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "final video", string(data))

	// No workspace survives the response.
	entries, err := os.ReadDir(env.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleNoAudioIs400(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{"video_urls": []string{env.clips.URL + "/clip/0"}})
	resp, err := http.Post(env.api.URL+"/assemble", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Contains(t, errBody["error"], "no audio")

	// Validation failed before any workspace work.
	entries, err := os.ReadDir(env.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleInvalidJSONIs400(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.api.URL+"/assemble", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssembleAllClipsFailedIs500AndCleansUp(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.api.URL+"/assemble", "application/json",
		bytes.NewReader(env.assembleBody(env.clips.URL+"/missing/0", env.clips.URL+"/missing/1")))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var errBody map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Contains(t, errBody["error"], "clip")

	entries, err := os.ReadDir(env.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed on failure too")
}

func TestAssembleUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "narration.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded audio payload"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("video_urls", fmt.Sprintf("%s/clip/0,%s/clip/1", env.clips.URL, env.clips.URL)))
	require.NoError(t, mw.WriteField("title", "Test Short"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(env.api.URL+"/assemble-upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "final video", string(data))
}

func TestAssembleUploadWithoutAudioIs400(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("video_urls", env.clips.URL+"/clip/0"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(env.api.URL+"/assemble-upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.api.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(env.api.URL + "/assemble")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
