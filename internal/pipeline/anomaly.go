package pipeline

import (
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// doomscroll検出のチューニング定数。
// 深夜帯[03:30, 06:00]（両端含む）に始まる20分以下のオンラインバーストを対象とする。
const (
	doomBandStartSec = 3*3600 + 30*60 // 03:30
	doomBandEndSec   = 6 * 3600       // 06:00
	doomMaxDuration  = 20 * time.Minute
)

// DoomscrollBurst は睡眠ウィンドウ内で検出した覚醒バーストの候補を表す。
type DoomscrollBurst struct {
	UserID         int64
	WakeLocal      time.Time     // onlineイベントのローカル時刻
	OnlineDuration time.Duration // online→次のofflineまでの時間
}

// DetectDoomscrolls はtimestamp昇順のイベント列（1ウィンドウ分）から
// doomscrollバーストを検出する状態を持たない純粋関数。
// offline→onlineの隣接ペア（覚醒）ごとに、その後最初のofflineイベント
// （再入眠）を探し、ローカル覚醒時刻が深夜帯に入りかつバーストが20分以下の
// 場合に候補として返す。
// 条件を満たすかどうかに関わらず、見つけたofflineイベントの直後から走査を
// 再開するため、バーストが重複してマッチすることはない。再入眠が観測できない
// バーストは評価されない。
func DetectDoomscrolls(events []model.PresenceEvent, loc *time.Location) []DoomscrollBurst {
	var bursts []DoomscrollBurst

	i := 0
	for i < len(events)-1 {
		if events[i].Status == model.StatusOffline && events[i+1].Status == model.StatusOnline {
			onlineStart := events[i+1].Timestamp

			// 再入眠（次のofflineイベント）を探す
			j := i + 2
			for j < len(events) && events[j].Status != model.StatusOffline {
				j++
			}
			if j >= len(events) {
				// 再入眠がウィンドウ内に存在しないため、これ以降の評価対象もない
				break
			}

			duration := events[j].Timestamp.Sub(onlineStart)
			wakeLocal := onlineStart.In(loc)

			if inDoomBand(wakeLocal) && duration <= doomMaxDuration {
				bursts = append(bursts, DoomscrollBurst{
					UserID:         events[i+1].UserID,
					WakeLocal:      wakeLocal,
					OnlineDuration: duration,
				})
			}

			// 解決済みバーストの直後から再開する
			i = j + 1
			continue
		}
		i++
	}

	return bursts
}

// Metadata はバーストをAPI/永続化用の構造化メタデータに変換する。
func (b DoomscrollBurst) Metadata() model.DoomscrollMetadata {
	return model.DoomscrollMetadata{
		OnlineDurationMinutes: int(b.OnlineDuration / time.Minute),
		WakeTime:              b.WakeLocal.Format("15:04"),
		ReturnToSleep:         true,
	}
}

// inDoomBand はローカル時刻のtime-of-dayが[03:30, 06:00]（両端含む）に
// 入るかどうかを返す。
func inDoomBand(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return sec >= doomBandStartSec && sec <= doomBandEndSec
}
