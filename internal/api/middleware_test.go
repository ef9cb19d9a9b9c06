package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/syncplane/internal/attempt"
)

// captureLogs routes the default logger into a buffer for the test's duration.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

// findLog returns the first JSON log entry with the given message.
func findLog(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %s", sc.Text())
		}
		if entry["msg"] == msg {
			return entry
		}
	}
	t.Fatalf("no %q log entry in:\n%s", msg, buf.String())
	return nil
}

func TestRouter_AttemptRoutesRejectBadCredentials(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/jobs/1/attempts"},
		{http.MethodPost, "/api/v1/jobs/1/attempts/0/fail"},
		{http.MethodPost, "/api/v1/jobs/1/attempts/0/succeed"},
		{http.MethodGet, "/api/v1/jobs/1/attempts/0/stats"},
		// Auth runs before job id parsing.
		{http.MethodPost, "/api/v1/jobs/not-a-number/attempts"},
	}
	headers := map[string]string{
		"missing":          "",
		"wrong key":        "Bearer wrong-key",
		"basic scheme":     "Basic " + testAPIKey,
		"lowercase scheme": "bearer " + testAPIKey,
		"empty token":      "Bearer ",
	}

	for _, rt := range routes {
		for name, header := range headers {
			t.Run(rt.method+" "+rt.path+"/"+name, func(t *testing.T) {
				s := newTestServer()
				req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{}`))
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				w := httptest.NewRecorder()
				s.router.ServeHTTP(w, req)

				if w.Code != http.StatusUnauthorized {
					t.Fatalf("status = %d, want 401", w.Code)
				}
				if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("Content-Type = %q, want application/problem+json", ct)
				}
				if strings.Contains(w.Body.String(), testAPIKey) {
					t.Error("response contains the API key")
				}
				if len(s.attempts.failCalls) != 0 || len(s.attempts.succeedCalls) != 0 {
					t.Error("attempt manager reached without credentials")
				}
			})
		}
	}
}

func TestRouter_ValidBearerReachesAttemptHandlers(t *testing.T) {
	s := newTestServer()
	s.attempts.createNumber = 2

	if w := s.do(http.MethodPost, "/api/v1/jobs/1/attempts", nil); w.Code != http.StatusCreated {
		t.Fatalf("create attempt status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, "/api/v1/jobs/1/attempts/2/fail", `{}`); w.Code != http.StatusNoContent {
		t.Fatalf("fail attempt status = %d, want 204 (body %s)", w.Code, w.Body.String())
	}
	if len(s.attempts.failCalls) != 1 {
		t.Errorf("fail calls = %d, want 1", len(s.attempts.failCalls))
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	s := newTestServer()

	for _, header := range []string{"", "Bearer wrong-key"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("health with Authorization %q: status = %d, want 200", header, w.Code)
		}
	}
}

func TestLoggingMiddleware_RequestLine(t *testing.T) {
	buf := captureLogs(t)
	s := newTestServer()
	s.attempts.createNumber = 0

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/9/attempts", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("X-Request-Id", "req-attempt-9")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	entry := findLog(t, buf, "request completed")
	want := map[string]any{
		"component":  "api",
		"request_id": "req-attempt-9",
		"method":     http.MethodPost,
		"path":       "/api/v1/jobs/9/attempts",
		"status":     float64(http.StatusCreated),
		"level":      "INFO",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("log %s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("log missing duration_ms")
	}
	if strings.Contains(buf.String(), testAPIKey) {
		t.Error("logs contain the API key")
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *testServer)
		auth  bool
		level string
	}{
		{"created", func(s *testServer) {}, true, "INFO"},
		{"unauthorized", func(s *testServer) {}, false, "WARN"},
		{"job not processable", func(s *testServer) {
			s.attempts.createErr = fmt.Errorf("%w: could not find job 3", attempt.ErrNotProcessable)
		}, true, "WARN"},
		{"store failure", func(s *testServer) {
			s.attempts.createErr = errors.New("disk I/O error")
		}, true, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			s := newTestServer()
			tt.setup(s)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/3/attempts", nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+testAPIKey)
			}
			s.router.ServeHTTP(httptest.NewRecorder(), req)

			if got := findLog(t, buf, "request completed")["level"]; got != tt.level {
				t.Errorf("level = %v, want %s", got, tt.level)
			}
		})
	}
}

func TestLogLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusCreated, slog.LevelInfo},
		{http.StatusNoContent, slog.LevelInfo},
		{http.StatusBadRequest, slog.LevelWarn},
		{http.StatusConflict, slog.LevelWarn},
		{http.StatusUnprocessableEntity, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := logLevelForStatus(tt.status); got != tt.want {
			t.Errorf("logLevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestAuthMiddleware_FailureLogged(t *testing.T) {
	buf := captureLogs(t)
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/1/attempts/0/fail", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	req.Header.Set("X-Request-Id", "req-bad-key")
	s.router.ServeHTTP(httptest.NewRecorder(), req)

	entry := findLog(t, buf, "auth failure")
	if entry["component"] != "api" || entry["request_id"] != "req-bad-key" {
		t.Errorf("auth failure log = %v", entry)
	}
	if entry["path"] != "/api/v1/jobs/1/attempts/0/fail" {
		t.Errorf("path = %v", entry["path"])
	}
	if strings.Contains(buf.String(), "wrong-key") || strings.Contains(buf.String(), testAPIKey) {
		t.Error("logs contain a token")
	}
}

func TestRecoveryMiddleware_PanicBecomesProblem(t *testing.T) {
	buf := captureLogs(t)

	// Attempt handlers mounted without AttemptMiddleware panic on the
	// missing route context.
	h := NewHandler(newMockRegistry(), &mockAttempts{}, testAPIKey, "1.0.0")
	handler := RecoveryMiddleware(http.HandlerFunc(h.GetAttempt))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/1/attempts/0", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	p := decodeProblem(t, w)
	if p.Detail != "Internal Server Error" {
		t.Errorf("detail = %q, want generic message", p.Detail)
	}
	if strings.Contains(w.Body.String(), "goroutine") {
		t.Error("response leaks the stack trace")
	}

	entry := findLog(t, buf, "panic recovered")
	if entry["component"] != "api" {
		t.Errorf("component = %v, want api", entry["component"])
	}
	if s, _ := entry["stack"].(string); s == "" {
		t.Error("panic log missing stack")
	}
}
