package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラー内のpanicを回収し、統一エラーフォーマットで
// 500を返すミドルウェアを生成する。照会ハンドラーのバグでAPIプロセス全体
// （/healthと/metricsを含む）が落ちることを防ぐ。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("stack", string(debug.Stack())),
					)
					writePanicResponse(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writePanicResponse はハンドラーのエラーレスポンスと同じJSON形式で
// 500を書き込む。panicの内容はレスポンスに含めない。
func writePanicResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"code":     "INTERNAL_ERROR",
		"message":  "内部エラーが発生しました。",
		"category": "system",
		"action":   "しばらく待ってから再度お試しください。",
	})
}
