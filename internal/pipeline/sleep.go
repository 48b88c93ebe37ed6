package pipeline

import (
	"sort"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// 睡眠推定のチューニング定数。
const (
	// minSleepDuration は睡眠候補とみなすオフライン区間の最小長。
	minSleepDuration = 3 * time.Hour
	// maxSleepGap はこのギャップ以下で隣接する候補をひとつのウィンドウにマージする。
	maxSleepGap = 5 * time.Minute

	// 標準的な夜間帯はローカル時刻21:00（当日）〜10:00（翌日）。
	sleepHoursStartHour = 21
	sleepHoursEndHour   = 10

	// longSleepThreshold 以上のウィンドウは信頼度ボーナスの対象。
	longSleepThreshold = 6 * time.Hour
)

// 信頼度スコアの構成要素。決定的ヒューリスティックであり統計的な意味は持たない。
const (
	confidenceBase         = 0.6
	confidenceBonusQuiet   = 0.2 // ウィンドウ内にonlineイベントが1件もない
	confidenceBonusLong    = 0.1 // ウィンドウ長が6時間以上
	confidencePenaltyNoise = 0.2 // ウィンドウ内にunknownイベントがある
)

// localInterval はユーザーのローカルタイムゾーンに変換済みの時間区間。
type localInterval struct {
	start time.Time
	end   time.Time
}

// nightWindowFor は区間開始時刻が属する夜のウィンドウ（21:00→翌10:00）を返す。
// アンカー日: 開始時刻のtime-of-dayが10:00以降ならその日、10:00より前なら前日。
// 深夜0時台に始まる区間を前日の夜に帰属させるための規則。
// シフト勤務など標準帯から外れた睡眠パターンはこの規則では表現できない
// （仕様上未定義のまま、一般化しない）。
func nightWindowFor(startLocal time.Time) (time.Time, time.Time) {
	anchor := startLocal
	if startLocal.Hour() < sleepHoursEndHour {
		anchor = startLocal.AddDate(0, 0, -1)
	}

	loc := startLocal.Location()
	windowStart := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), sleepHoursStartHour, 0, 0, 0, loc)
	windowEnd := time.Date(anchor.Year(), anchor.Month(), anchor.Day()+1, sleepHoursEndHour, 0, 0, 0, loc)

	return windowStart, windowEnd
}

// overlapsNightWindow は区間が標準夜間帯と重なるかどうかを返す。
// 判定は max(start, windowStart) < min(end, windowEnd)。
func overlapsNightWindow(iv localInterval) bool {
	windowStart, windowEnd := nightWindowFor(iv.start)

	lo := iv.start
	if windowStart.After(lo) {
		lo = windowStart
	}
	hi := iv.end
	if windowEnd.Before(hi) {
		hi = windowEnd
	}

	return lo.Before(hi)
}

// filterSleepCandidates はローカル変換済み区間から睡眠候補を選別する。
// 最小睡眠時間未満の区間と、標準夜間帯に重ならない区間を除外する。
// ちょうど3時間の区間は保持する（>=判定、>ではない）。
func filterSleepCandidates(intervals []localInterval) []localInterval {
	var candidates []localInterval
	for _, iv := range intervals {
		if iv.end.Sub(iv.start) < minSleepDuration {
			continue
		}
		if !overlapsNightWindow(iv) {
			continue
		}
		candidates = append(candidates, iv)
	}
	return candidates
}

// mergeSleepCandidates は時系列で近接する候補をマージする。
// 開始時刻昇順に走査し、前のウィンドウ終了から5分以内に始まる候補は
// そのウィンドウに統合する（終了は遅い方を採用）。
func mergeSleepCandidates(candidates []localInterval) []localInterval {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]localInterval, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].start.Before(sorted[j].start)
	})

	merged := []localInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.start.Sub(last.end) <= maxSleepGap {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
		} else {
			merged = append(merged, iv)
		}
	}

	return merged
}

// confidenceScore はウィンドウの信頼度を計算する。
// statusesにはウィンドウのUTC区間[start, end]内に記録された全イベントの
// 正規化ステータスを渡す。結果は常に[0,1]にクランプされる。
func confidenceScore(duration time.Duration, statuses []model.Status) float64 {
	score := confidenceBase

	hasOnline := false
	hasUnknown := false
	for _, s := range statuses {
		switch s {
		case model.StatusOnline:
			hasOnline = true
		case model.StatusUnknown:
			hasUnknown = true
		}
	}

	if !hasOnline {
		score += confidenceBonusQuiet
	}
	if duration >= longSleepThreshold {
		score += confidenceBonusLong
	}
	if hasUnknown {
		score -= confidencePenaltyNoise
	}

	if score < 0.0 {
		score = 0.0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
