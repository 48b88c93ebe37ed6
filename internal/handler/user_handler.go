// Package handler はREST APIのHTTPハンドラーを提供する。
// 全エンドポイントは読み取り専用で、派生テーブルへの書き込みは行わない。
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitsuki/nemuri/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// ListUsers は全監視対象ユーザーをuser_id昇順で取得する。
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// UserHandler は監視対象ユーザー照会のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Timezone string `json:"timezone"`
}

// ListUsers は監視対象ユーザーの一覧を返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			ID:       u.ID,
			Username: u.Username,
			FullName: u.FullName,
			Timezone: u.Timezone,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// userIDFromRequest はパスパラメータ{id}をユーザーIDとして解析する。
// 数値でない場合はUSER_NOT_FOUNDとして扱う（該当ユーザーは存在し得ない）。
func userIDFromRequest(r *http.Request) (int64, *model.APIError) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return 0, &model.APIError{
			Code:     model.ErrCodeUserNotFound,
			Message:  "指定されたユーザーが見つかりません: " + idParam,
			Category: "user",
			Action:   "ユーザーIDを確認してください。",
		}
	}
	return id, nil
}
