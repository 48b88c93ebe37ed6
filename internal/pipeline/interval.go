// Package pipeline はプレゼンスイベントから睡眠を推定する3段の集計処理を提供する。
// オフライン区間抽出、睡眠ウィンドウ検出、異常検出の順に実行され、
// 各段は前段のコミット済み出力と生イベントのみを読み取る。
package pipeline

import (
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// ExtractOfflineIntervals はtimestamp昇順のイベント列からオフライン区間を導出する。
//
// オフライン区間 = OFFLINEイベント → 次のONLINEイベント
//
// 以下は意図的に行わない:
//   - 区間を「現在時刻」まで延長すること
//   - 連続するOFFLINEイベントから複数の区間を作ること
//
// ログ末尾で区間が開いたままの場合（ユーザーが復帰していない）は破棄する。
// 睡眠は覚醒イベントを観測して初めて遡って推定される。
// duration 0以下の区間（時刻の重複・逆転）は破棄する。
func ExtractOfflineIntervals(events []model.PresenceEvent) []model.OfflineInterval {
	var intervals []model.OfflineInterval
	var offlineStart *time.Time

	for _, ev := range events {
		switch ev.Status {
		case model.StatusOffline:
			// すでに区間が開いている場合、開始時刻はリセットしない
			if offlineStart == nil {
				t := ev.Timestamp
				offlineStart = &t
			}

		case model.StatusOnline:
			if offlineStart != nil {
				duration := int64(ev.Timestamp.Sub(*offlineStart) / time.Second)
				if duration > 0 {
					intervals = append(intervals, model.OfflineInterval{
						UserID:          ev.UserID,
						StartUTC:        *offlineStart,
						EndUTC:          ev.Timestamp,
						DurationSeconds: duration,
					})
				}
				offlineStart = nil
			}

		case model.StatusUnknown:
			// unknownは区間を開きも閉じもしない
		}
	}

	return intervals
}
