package model

import "time"

// OfflineInterval はoffline遷移から次のonline遷移までの閉区間を表す。
// パイプラインの第1段が導出し、実行ごとに全置換される。
// 不変条件: StartUTC < EndUTC、DurationSeconds = EndUTC - StartUTC（秒）、DurationSeconds > 0。
type OfflineInterval struct {
	ID              int64
	UserID          int64
	StartUTC        time.Time
	EndUTC          time.Time
	DurationSeconds int64
}
