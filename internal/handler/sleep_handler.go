package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mitsuki/nemuri/internal/sleep"
)

// SleepServiceInterface は睡眠ハンドラーが必要とするサービスインターフェース。
type SleepServiceInterface interface {
	// GetReport はユーザーの睡眠ウィンドウと異常を日付フィルタ付きで取得する。
	GetReport(ctx context.Context, userID int64, fromDate, toDate string) (*sleep.Report, error)
}

// SleepHandler は睡眠データ照会のHTTPハンドラー。
type SleepHandler struct {
	service SleepServiceInterface
}

// NewSleepHandler はSleepHandlerを生成する。
func NewSleepHandler(service SleepServiceInterface) *SleepHandler {
	return &SleepHandler{
		service: service,
	}
}

// sleepWindowResponse は睡眠ウィンドウのAPIレスポンス。
// 時刻はユーザーのローカルタイムゾーンのオフセット付きRFC3339で返す。
type sleepWindowResponse struct {
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes int     `json:"duration_minutes"`
	Confidence      float64 `json:"confidence"`
}

// anomalyResponse は行動異常のAPIレスポンス。
type anomalyResponse struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata"`
}

// sleepReportResponse は睡眠照会のAPIレスポンス。
type sleepReportResponse struct {
	Windows   []sleepWindowResponse `json:"windows"`
	Anomalies []anomalyResponse     `json:"anomalies"`
}

// GetSleep はユーザーの睡眠ウィンドウと異常を返す。
// GET /api/users/{id}/sleep?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *SleepHandler) GetSleep(w http.ResponseWriter, r *http.Request) {
	userID, apiErr := userIDFromRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, apiErr)
		return
	}

	fromDate := r.URL.Query().Get("from")
	toDate := r.URL.Query().Get("to")

	report, err := h.service.GetReport(r.Context(), userID, fromDate, toDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := sleepReportResponse{
		Windows:   make([]sleepWindowResponse, 0, len(report.Windows)),
		Anomalies: make([]anomalyResponse, 0, len(report.Anomalies)),
	}
	for _, win := range report.Windows {
		resp.Windows = append(resp.Windows, sleepWindowResponse{
			Start:           win.StartLocal.Format(time.RFC3339),
			End:             win.EndLocal.Format(time.RFC3339),
			DurationMinutes: win.DurationMinutes,
			Confidence:      win.Confidence,
		})
	}
	for _, a := range report.Anomalies {
		metadata := json.RawMessage(a.MetadataJSON)
		if len(metadata) == 0 {
			metadata = json.RawMessage("null")
		}
		resp.Anomalies = append(resp.Anomalies, anomalyResponse{
			Type:      string(a.Type),
			Timestamp: a.TimestampLocal.Format(time.RFC3339),
			Metadata:  metadata,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
