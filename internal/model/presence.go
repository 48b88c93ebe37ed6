package model

import "time"

// Status はプラットフォーム固有の生ステータスから導出した正規化ステータス。
type Status string

const (
	// StatusOnline はユーザーがオンラインであることを示す。
	StatusOnline Status = "online"
	// StatusOffline はユーザーがオフラインであることを示す。
	StatusOffline Status = "offline"
	// StatusUnknown はオンライン/オフラインのどちらとも判定できないことを示す。
	// （プライバシー設定による"recently"等の曖昧なステータスを含む）
	StatusUnknown Status = "unknown"
)

// IsValid はStatusが定義済みの値かどうかを返す。
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusUnknown:
		return true
	}
	return false
}

// PresenceEvent はプレゼンスの変化1件を表す。
// 追記専用で、全派生データの信頼できる唯一の情報源となる。
type PresenceEvent struct {
	ID        int64
	UserID    int64
	Timestamp time.Time // UTC
	RawStatus string
	Status    Status
}
