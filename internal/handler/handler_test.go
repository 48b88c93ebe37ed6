package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/presence"
	"github.com/mitsuki/nemuri/internal/sleep"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	listUsersFn func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, nil
}

// mockSleepService はSleepServiceInterfaceのモック実装。
type mockSleepService struct {
	getReportFn func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error)
}

func (m *mockSleepService) GetReport(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
	if m.getReportFn != nil {
		return m.getReportFn(ctx, userID, fromDate, toDate)
	}
	return &sleep.Report{}, nil
}

// mockPresenceService はPresenceServiceInterfaceのモック実装。
type mockPresenceService struct {
	listUserEventsFn   func(ctx context.Context, userID int64, query presence.EventQuery) ([]model.PresenceEvent, error)
	listRecentOnlineFn func(ctx context.Context, limit int) ([]model.PresenceEvent, error)
}

func (m *mockPresenceService) ListUserEvents(ctx context.Context, userID int64, query presence.EventQuery) ([]model.PresenceEvent, error) {
	if m.listUserEventsFn != nil {
		return m.listUserEventsFn(ctx, userID, query)
	}
	return nil, nil
}

func (m *mockPresenceService) ListRecentOnline(ctx context.Context, limit int) ([]model.PresenceEvent, error) {
	if m.listRecentOnlineFn != nil {
		return m.listRecentOnlineFn(ctx, limit)
	}
	return nil, nil
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- GET /api/users テスト ---

func TestUserHandler_ListUsers_Success(t *testing.T) {
	svc := &mockUserService{
		listUsersFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{
				{ID: 1, Username: "yamada", FullName: "山田 太郎", Timezone: "Asia/Tokyo"},
				{ID: 2, Username: "suzuki", Timezone: "UTC"},
			}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	h.ListUsers(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var result []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("users length = %d, want 2", len(result))
	}
	if result[0]["id"] != float64(1) || result[0]["username"] != "yamada" {
		t.Errorf("users[0] = %v, want id 1 username yamada", result[0])
	}
	if result[0]["timezone"] != "Asia/Tokyo" {
		t.Errorf("timezone = %v, want Asia/Tokyo", result[0]["timezone"])
	}
}

func TestUserHandler_ListUsers_ServiceError(t *testing.T) {
	svc := &mockUserService{
		listUsersFn: func(ctx context.Context) ([]*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// --- GET /api/users/{id}/sleep テスト ---

func TestSleepHandler_GetSleep_Success(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	svc := &mockSleepService{
		getReportFn: func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
			if userID != 1 {
				t.Errorf("userID = %d, want 1", userID)
			}
			if fromDate != "2025-01-10" || toDate != "2025-01-12" {
				t.Errorf("dates = (%q, %q), want (2025-01-10, 2025-01-12)", fromDate, toDate)
			}
			return &sleep.Report{
				Windows: []model.SleepWindow{
					{
						UserID:          1,
						StartLocal:      time.Date(2025, 1, 10, 23, 0, 0, 0, loc),
						EndLocal:        time.Date(2025, 1, 11, 7, 0, 0, 0, loc),
						DurationMinutes: 480,
						Confidence:      0.9,
					},
				},
				Anomalies: []model.Anomaly{
					{
						UserID:         1,
						Type:           model.AnomalyTypeDoomscroll,
						TimestampLocal: time.Date(2025, 1, 11, 4, 10, 0, 0, loc),
						MetadataJSON:   `{"online_duration_minutes":5,"wake_time":"04:10","return_to_sleep":true}`,
					},
				},
			}, nil
		},
	}
	h := NewSleepHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/sleep?from=2025-01-10&to=2025-01-12", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	windows, ok := result["windows"].([]any)
	if !ok || len(windows) != 1 {
		t.Fatalf("windows = %v, want 1 entry", result["windows"])
	}
	win := windows[0].(map[string]any)
	if win["start"] != "2025-01-10T23:00:00+09:00" {
		t.Errorf("start = %v, want 2025-01-10T23:00:00+09:00", win["start"])
	}
	if win["duration_minutes"] != float64(480) {
		t.Errorf("duration_minutes = %v, want 480", win["duration_minutes"])
	}

	anomalies, ok := result["anomalies"].([]any)
	if !ok || len(anomalies) != 1 {
		t.Fatalf("anomalies = %v, want 1 entry", result["anomalies"])
	}
	anomaly := anomalies[0].(map[string]any)
	if anomaly["type"] != "doomscroll" {
		t.Errorf("type = %v, want doomscroll", anomaly["type"])
	}
	metadata, ok := anomaly["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata is not a JSON object: %v", anomaly["metadata"])
	}
	if metadata["wake_time"] != "04:10" {
		t.Errorf("metadata.wake_time = %v, want 04:10", metadata["wake_time"])
	}
}

func TestSleepHandler_GetSleep_UserNotFound(t *testing.T) {
	svc := &mockSleepService{
		getReportFn: func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
			return nil, model.NewUserNotFoundError(userID)
		},
	}
	h := NewSleepHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/99/sleep", nil)
	req = withChiURLParam(req, "id", "99")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want USER_NOT_FOUND", resp.Code)
	}
}

func TestSleepHandler_GetSleep_NonNumericID(t *testing.T) {
	h := NewSleepHandler(&mockSleepService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/sleep", nil)
	req = withChiURLParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSleepHandler_GetSleep_InvalidDate(t *testing.T) {
	svc := &mockSleepService{
		getReportFn: func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
			return nil, model.NewInvalidDateError(fromDate)
		},
	}
	h := NewSleepHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/sleep?from=bad", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSleepHandler_GetSleep_InvalidTimezone(t *testing.T) {
	svc := &mockSleepService{
		getReportFn: func(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error) {
			return nil, model.NewInvalidTimezoneError("Nowhere/Invalid")
		},
	}
	h := NewSleepHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/sleep", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestSleepHandler_GetSleep_EmptyReport(t *testing.T) {
	h := NewSleepHandler(&mockSleepService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/sleep", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.GetSleep(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// 空でもnullではなく空配列を返す
	if _, ok := result["windows"].([]any); !ok {
		t.Errorf("windows = %v, want empty array", result["windows"])
	}
	if _, ok := result["anomalies"].([]any); !ok {
		t.Errorf("anomalies = %v, want empty array", result["anomalies"])
	}
}

// --- GET /api/users/{id}/presence テスト ---

func TestPresenceHandler_ListUserEvents_Success(t *testing.T) {
	ts := time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC)
	svc := &mockPresenceService{
		listUserEventsFn: func(ctx context.Context, userID int64, query presence.EventQuery) ([]model.PresenceEvent, error) {
			if userID != 1 {
				t.Errorf("userID = %d, want 1", userID)
			}
			if query.Status != "offline" || query.Limit != 10 {
				t.Errorf("query = %+v, want status offline limit 10", query)
			}
			return []model.PresenceEvent{
				{ID: 7, UserID: 1, Timestamp: ts, RawStatus: "OFFLINE", Status: model.StatusOffline},
			}, nil
		},
	}
	h := NewPresenceHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/presence?status=offline&limit=10", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.ListUserEvents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("events length = %d, want 1", len(result))
	}
	if result[0]["timestamp"] != "2025-01-10T22:00:00Z" {
		t.Errorf("timestamp = %v, want 2025-01-10T22:00:00Z", result[0]["timestamp"])
	}
	if result[0]["raw_status"] != "OFFLINE" || result[0]["status"] != "offline" {
		t.Errorf("statuses = (%v, %v), want (OFFLINE, offline)", result[0]["raw_status"], result[0]["status"])
	}
}

func TestPresenceHandler_ListUserEvents_InvalidLimit(t *testing.T) {
	h := NewPresenceHandler(&mockPresenceService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/presence?limit=abc", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.ListUserEvents(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPresenceHandler_ListUserEvents_InvalidStatus(t *testing.T) {
	svc := &mockPresenceService{
		listUserEventsFn: func(ctx context.Context, userID int64, query presence.EventQuery) ([]model.PresenceEvent, error) {
			return nil, model.NewInvalidStatusError(query.Status)
		},
	}
	h := NewPresenceHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/1/presence?status=sleeping", nil)
	req = withChiURLParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.ListUserEvents(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// --- GET /api/presence/online テスト ---

func TestPresenceHandler_ListRecentOnline_Success(t *testing.T) {
	var gotLimit int
	svc := &mockPresenceService{
		listRecentOnlineFn: func(ctx context.Context, limit int) ([]model.PresenceEvent, error) {
			gotLimit = limit
			return []model.PresenceEvent{
				{ID: 1, UserID: 2, Timestamp: time.Now().UTC(), RawStatus: "ONLINE", Status: model.StatusOnline},
			}, nil
		},
	}
	h := NewPresenceHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/online?limit=25", nil)
	w := httptest.NewRecorder()

	h.ListRecentOnline(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotLimit != 25 {
		t.Errorf("limit = %d, want 25", gotLimit)
	}
}
