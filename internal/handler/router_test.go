package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mitsuki/nemuri/internal/middleware"
	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/sleep"
)

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// newTestRouter は実ミドルウェアを組み込んだルーターをテスト用に構築する。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = &mockHealthChecker{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.SleepService == nil {
		deps.SleepService = &mockSleepService{}
	}
	if deps.PresenceService == nil {
		deps.PresenceService = &mockPresenceService{}
	}

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(600))
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl

	return NewRouter(deps)
}

func TestRouter_HealthOK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header is not set")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{
			pingFn: func(ctx context.Context) error {
				return errors.New("connection refused")
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRouter_MetricsRoute(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# HELP nemuri_events_ingested_total\n"))
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "nemuri_events_ingested_total") {
		t.Errorf("body does not contain metrics output: %q", w.Body.String())
	}
}

func TestRouter_MetricsRouteAbsentWhenNil(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_SleepRouteWiring(t *testing.T) {
	var gotUserID int64
	router := newTestRouter(t, &RouterDeps{
		SleepService: &mockSleepService{
			getReportFn: func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
				gotUserID = userID
				return &sleep.Report{}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/42/sleep", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotUserID != 42 {
		t.Errorf("userID = %d, want 42 (URLパラメータが伝搬していない)", gotUserID)
	}
}

func TestRouter_UsersRoute(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		UserService: &mockUserService{
			listUsersFn: func(ctx context.Context) ([]*model.User, error) {
				return []*model.User{{ID: 1, Username: "yamada", Timezone: "Asia/Tokyo"}}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 1 || result[0]["username"] != "yamada" {
		t.Errorf("users = %v, want [yamada]", result)
	}
}

func TestRouter_CORSHeaders(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		CORSAllowedOrigin: "https://dashboard.example.com",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.RemoteAddr = "203.0.113.1:40000"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want https://dashboard.example.com", got)
	}
}

func TestRouter_RateLimitExemptsHealth(t *testing.T) {
	deps := &RouterDeps{}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	deps.HealthChecker = &mockHealthChecker{}
	deps.UserService = &mockUserService{}
	deps.SleepService = &mockSleepService{}
	deps.PresenceService = &mockPresenceService{}

	// バースト1の厳しい制限
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     0.01,
		GeneralBurst:    1,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl

	router := NewRouter(deps)

	// APIルートはバーストを使い切ると429になる
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = "203.0.113.5:40000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i == 0 && w.Code != http.StatusOK {
			t.Fatalf("first request status = %d, want 200", w.Code)
		}
		if i == 1 && w.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status = %d, want 429", w.Code)
		}
	}

	// /health は制限の対象外
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.5:40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200 (レート制限の対象外であるべき)", w.Code)
	}
}
