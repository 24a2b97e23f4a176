package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserweed/modelconv/batch"
	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/history"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHistory struct {
	entries []history.Entry
	err     error
	limit   int
}

func (f *fakeHistory) Recent(limit int) ([]history.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	s := &Server{
		ModelsDir: filepath.Join(root, "custom-models"),
		IndexPath: filepath.Join(root, "web", "models_index.json"),
	}
	require.NoError(t, os.MkdirAll(s.ModelsDir, 0o755))
	return s, root
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestIndexHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()

	w := do(t, h, "/api/models")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"models":[],"last_updated":"","total_models":0}`, w.Body.String())

	writeFile(t, s.IndexPath, `{"models":[{"id":"yolov7-tiny","name":"yolov7-tiny.ckpt","type":"yolov7-tiny","path":"models/yolov7-tiny/model.json","config_path":"models/yolov7-tiny/classes.json","size_mb":12.5,"quantized":true,"performance_tier":"fast"}],"last_updated":"2025-03-01 12:00:00","total_models":1}`)

	w = do(t, h, "/api/models")
	require.Equal(t, http.StatusOK, w.Code)
	var idx batch.Index
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	assert.Equal(t, 1, idx.TotalModels)
	assert.Equal(t, "fast", idx.Models[0].PerformanceTier)
}

func TestResultsHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()

	assert.Equal(t, http.StatusNotFound, do(t, h, "/api/results").Code)

	writeFile(t, filepath.Join(s.ModelsDir, batch.ResultsFile), `{"run_id":"abc","timestamp":"2025-03-01 12:00:00","quantized":false,"results":[{"model":"a.ckpt","type":"yolov7","status":"error","quantized":false,"timestamp":"2025-03-01T12:00:00Z"}]}`)
	w := do(t, h, "/api/results")
	require.Equal(t, http.StatusOK, w.Code)

	var r batch.Results
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "abc", r.RunID)
	require.Len(t, r.Results, 1)
	assert.Equal(t, "a.ckpt", r.Results[0].Model)
}

func TestValidateHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.GenerateRoutes()

	good := filepath.Join(s.ModelsDir, "good")
	writeFile(t, filepath.Join(good, "model.json"), `{}`)
	writeFile(t, filepath.Join(good, "classes.json"), `{"classes":["crop"]}`)

	nested := filepath.Join(s.ModelsDir, "field", "nested")
	writeFile(t, filepath.Join(nested, "model.json"), `{}`)
	writeFile(t, filepath.Join(nested, "classes.json"), `{"classes":[]}`)
	writeFile(t, s.IndexPath, `{"models":[{"id":"nested","path":"models/field/nested/model.json"}],"total_models":1}`)

	cases := []struct {
		target string
		code   int
		valid  bool
	}{
		{"/api/models/good/validate", http.StatusOK, true},
		{"/api/models/nested/validate", http.StatusOK, true},
		{"/api/models/missing/validate", http.StatusOK, false},
		{"/api/models/../validate", http.StatusBadRequest, false},
	}

	for _, tt := range cases {
		t.Run(tt.target, func(t *testing.T) {
			w := do(t, h, tt.target)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var body struct {
				Valid    bool     `json:"valid"`
				Problems []string `json:"problems"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.valid, body.Valid)
			if !tt.valid {
				assert.NotEmpty(t, body.Problems)
			}
		})
	}
}

func TestHistoryHandler(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s.GenerateRoutes(), "/api/history").Code)

	fh := &fakeHistory{entries: []history.Entry{{ID: 1, Model: "a.ckpt", Status: "success"}}}
	s.History = fh
	h := s.GenerateRoutes()

	w := do(t, h, "/api/history?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, fh.limit)
	assert.Contains(t, w.Body.String(), `"model":"a.ckpt"`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/api/history?limit=abc").Code)

	fh.err = errors.New("disk I/O error")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/api/history").Code)
}

func TestStaticModels(t *testing.T) {
	s, _ := newTestServer(t)
	writeFile(t, filepath.Join(s.ModelsDir, "m", "classes.json"), `{"classes":["crop"]}`)

	w := do(t, s.GenerateRoutes(), "/models/m/classes.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"classes":["crop"]}`, w.Body.String())
}

func TestHostGuard(t *testing.T) {
	s, _ := newTestServer(t)
	s.addr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8765}
	h := s.GenerateRoutes()

	cases := map[string]int{
		"localhost:8765":   http.StatusOK,
		"127.0.0.1:8765":   http.StatusOK,
		"laser.local":      http.StatusOK,
		"example.com:8765": http.StatusForbidden,
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, host)
	}
}

func TestHostGuardAllInterfaces(t *testing.T) {
	s, _ := newTestServer(t)
	s.addr = &net.TCPAddr{IP: net.ParseIP("0.0.0.0"), Port: 8765}
	h := s.GenerateRoutes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.com:8765"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLocalRequest(t *testing.T) {
	cases := map[string]bool{
		"":                   true,
		"LOCALHOST":          true,
		"[::1]:8765":         true,
		"192.168.1.20":       true,
		"0.0.0.0:8765":       true,
		"field.internal":     true,
		"cam.local.":         true,
		"8.8.8.8":            false,
		"evil.localhost.com": false,
		"example.com":        false,
	}
	for host, want := range cases {
		assert.Equal(t, want, localRequest(host), host)
	}
}

func TestGinModeFollowsDebug(t *testing.T) {
	cases := map[string]string{
		"":      gin.ReleaseMode,
		"0":     gin.ReleaseMode,
		"false": gin.ReleaseMode,
		"1":     gin.DebugMode,
		"2":     gin.DebugMode,
	}
	for in, want := range cases {
		t.Run("MODELCONV_DEBUG="+in, func(t *testing.T) {
			t.Setenv("MODELCONV_DEBUG", in)
			assert.Equal(t, want, ginMode(envconfig.LogLevel()))
		})
	}
}
