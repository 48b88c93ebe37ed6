package model

import "time"

// SleepWindow はフィルタ・マージ済みオフライン区間から推定した睡眠ウィンドウを表す。
// 開始・終了はユーザーのローカルタイムゾーンでの時刻を保持する。
// Confidenceは決定的ヒューリスティックによる[0,1]のスコア。
type SleepWindow struct {
	ID              int64
	UserID          int64
	StartLocal      time.Time
	EndLocal        time.Time
	DurationMinutes int
	Confidence      float64
}
