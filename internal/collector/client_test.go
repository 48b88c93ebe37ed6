package collector

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestClient_Status はステータス取得とBearerトークンの付与をテストする。
// httptestサーバーはループバックで起動されるため、safeurlクライアントではなく
// 素のhttp.Clientを使用する。
func TestClient_Status(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/users/42/status" {
			t.Errorf("path = %q, want /users/42/status", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ONLINE"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, "secret-token", newTestLogger())

	status, err := client.Status(context.Background(), 42)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != "ONLINE" {
		t.Errorf("Status() = %q, want %q", status, "ONLINE")
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret-token")
	}
}

// TestClient_Status_NoToken はトークン未設定時にAuthorizationヘッダを
// 付与しないことをテストする。
func TestClient_Status_NoToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status": "OFFLINE"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, "", newTestLogger())

	if _, err := client.Status(context.Background(), 1); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

// TestClient_Profile はプロフィール取得をテストする。
func TestClient_Profile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7" {
			t.Errorf("path = %q, want /users/7", r.URL.Path)
		}
		w.Write([]byte(`{"username": "yamada", "full_name": "山田 太郎"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, "", newTestLogger())

	profile, err := client.Profile(context.Background(), 7)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.Username != "yamada" {
		t.Errorf("Username = %q, want %q", profile.Username, "yamada")
	}
	if profile.FullName != "山田 太郎" {
		t.Errorf("FullName = %q, want %q", profile.FullName, "山田 太郎")
	}
}

// TestClient_ErrorStatus は非200レスポンスがエラーになることをテストする。
func TestClient_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, "", newTestLogger())

	if _, err := client.Status(context.Background(), 1); err == nil {
		t.Fatal("Status() error = nil, want error for 503")
	}
}

// TestClient_InvalidJSON は壊れたレスポンスがエラーになることをテストする。
func TestClient_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, "", newTestLogger())

	if _, err := client.Status(context.Background(), 1); err == nil {
		t.Fatal("Status() error = nil, want JSON parse error")
	}
}

// TestClient_TrailingSlash はベースURL末尾のスラッシュが二重にならないことをテストする。
func TestClient_TrailingSlash(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/1/status" {
			t.Errorf("path = %q, want /users/1/status", r.URL.Path)
		}
		w.Write([]byte(`{"status": "ONLINE"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL+"/", "", newTestLogger())

	if _, err := client.Status(context.Background(), 1); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
}
