package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/presence"
)

// PresenceServiceInterface はプレゼンスハンドラーが必要とするサービスインターフェース。
type PresenceServiceInterface interface {
	// ListUserEvents はユーザーの生イベントを絞り込み条件付きで取得する。
	ListUserEvents(ctx context.Context, userID int64, query presence.EventQuery) ([]model.PresenceEvent, error)

	// ListRecentOnline は全ユーザー横断で最新のonlineイベントを取得する。
	ListRecentOnline(ctx context.Context, limit int) ([]model.PresenceEvent, error)
}

// PresenceHandler は生プレゼンスイベント照会のHTTPハンドラー。
type PresenceHandler struct {
	service PresenceServiceInterface
}

// NewPresenceHandler はPresenceHandlerを生成する。
func NewPresenceHandler(service PresenceServiceInterface) *PresenceHandler {
	return &PresenceHandler{
		service: service,
	}
}

// presenceEventResponse は生イベントのAPIレスポンス。
// timestampはUTCのRFC3339で返す。
type presenceEventResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Timestamp string `json:"timestamp"`
	RawStatus string `json:"raw_status"`
	Status    string `json:"status"`
}

// ListUserEvents はユーザーの生イベントを返す。
// GET /api/users/{id}/presence?from=&to=&status=&limit=
func (h *PresenceHandler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, apiErr := userIDFromRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, apiErr)
		return
	}

	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	query := presence.EventQuery{
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	}

	events, err := h.service.ListUserEvents(r.Context(), userID, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPresenceEventResponses(events))
}

// ListRecentOnline は全ユーザー横断の最新onlineイベントを返す。
// GET /api/presence/online?limit=
func (h *PresenceHandler) ListRecentOnline(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListRecentOnline(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPresenceEventResponses(events))
}

// parseLimitParam はlimitクエリパラメータを解析する。
// 未指定は0（サービス層でデフォルト値が適用される）。
// 数値でない場合は400を書き込みfalseを返す。
func parseLimitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_LIMIT",
			Message:  "無効なlimitです: " + limitParam,
			Category: "validation",
			Action:   "limitには正の整数を指定してください。",
		})
		return 0, false
	}
	return limit, true
}

func toPresenceEventResponses(events []model.PresenceEvent) []presenceEventResponse {
	resp := make([]presenceEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, presenceEventResponse{
			ID:        ev.ID,
			UserID:    ev.UserID,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			RawStatus: ev.RawStatus,
			Status:    string(ev.Status),
		})
	}
	return resp
}
