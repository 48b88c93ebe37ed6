package model

import (
	"encoding/json"
	"time"
)

// AnomalyType は行動異常の種別を表す。
type AnomalyType string

// AnomalyTypeDoomscroll は睡眠ウィンドウ中の短いオンラインバースト
// （深夜帯のスマホ覗き見）を表す。現状で唯一の異常種別。
const AnomalyTypeDoomscroll AnomalyType = "doomscroll"

// Anomaly は睡眠ウィンドウ内で検出した行動異常1件を表す。
// MetadataJSONには種別ごとの構造化メタデータをJSONテキストで保持する。
type Anomaly struct {
	ID             int64
	UserID         int64
	Type           AnomalyType
	TimestampLocal time.Time
	MetadataJSON   string
}

// DoomscrollMetadata はdoomscroll異常の構造化メタデータ。
type DoomscrollMetadata struct {
	OnlineDurationMinutes int    `json:"online_duration_minutes"` // オンラインバーストの分数（切り捨て）
	WakeTime              string `json:"wake_time"`               // 覚醒時刻 "HH:MM"（ローカル）
	ReturnToSleep         bool   `json:"return_to_sleep"`         // 再入眠を確認済み（常にtrue）
}

// Encode はメタデータをJSONテキストに変換する。
func (m DoomscrollMetadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
