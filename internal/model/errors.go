package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInvalidDate     = "INVALID_DATE"
	ErrCodeInvalidRange    = "INVALID_RANGE"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeInvalidTimezone = "INVALID_TIMEZONE"
)

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", userID),
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidDateError は日付パラメータが不正な場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", value),
		Category: "validation",
		Action:   "日付はYYYY-MM-DD形式で指定してください。",
	}
}

// NewInvalidRangeError は時刻範囲パラメータが不正な場合のエラーを生成する。
func NewInvalidRangeError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRange,
		Message:  fmt.Sprintf("無効な時刻です: %s", value),
		Category: "validation",
		Action:   "時刻はRFC3339形式（例: 2025-01-02T15:04:05Z）で指定してください。",
	}
}

// NewInvalidStatusError はステータスフィルタが不正な場合のエラーを生成する。
func NewInvalidStatusError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", value),
		Category: "validation",
		Action:   "ステータスには online、offline、unknown のいずれかを指定してください。",
	}
}

// NewInvalidTimezoneError はユーザーに保存されたタイムゾーンが不正な場合のエラーを生成する。
func NewInvalidTimezoneError(tz string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimezone,
		Message:  fmt.Sprintf("ユーザーのタイムゾーンが不正です: %s", tz),
		Category: "system",
		Action:   "USER_TIMEZONESの設定を確認してください。",
	}
}
