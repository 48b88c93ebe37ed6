// Package sleep は睡眠ウィンドウと行動異常の照会ロジックを提供する。
package sleep

import (
	"context"
	"fmt"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/repository"
)

// dateLayout はクエリパラメータの日付形式。
const dateLayout = "2006-01-02"

// Report は1ユーザーの睡眠ウィンドウと異常をまとめた照会結果。
type Report struct {
	Windows   []model.SleepWindow
	Anomalies []model.Anomaly
}

// Service は睡眠データ照会のサービス層。
// 派生テーブルの読み取りのみ行い、書き込みは一切しない。
type Service struct {
	userRepo    repository.UserRepository
	windowRepo  repository.SleepWindowRepository
	anomalyRepo repository.AnomalyRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	windowRepo repository.SleepWindowRepository,
	anomalyRepo repository.AnomalyRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		windowRepo:  windowRepo,
		anomalyRepo: anomalyRepo,
	}
}

// GetReport はユーザーの睡眠ウィンドウと異常を取得する。
// fromDate/toDate はYYYY-MM-DD形式（空文字列は条件なし）で、
// ユーザーのタイムゾーンにおけるローカル日付として解釈される。
// フィルタはウィンドウの開始時刻・異常の発生時刻に対して適用され、
// from当日の00:00からto当日の24:00まで（両日含む）が対象になる。
func (s *Service) GetReport(ctx context.Context, userID int64, fromDate, toDate string) (*Report, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return nil, model.NewInvalidTimezoneError(user.Timezone)
	}

	var from, to *time.Time
	if fromDate != "" {
		t, err := time.ParseInLocation(dateLayout, fromDate, loc)
		if err != nil {
			return nil, model.NewInvalidDateError(fromDate)
		}
		from = &t
	}
	if toDate != "" {
		t, err := time.ParseInLocation(dateLayout, toDate, loc)
		if err != nil {
			return nil, model.NewInvalidDateError(toDate)
		}
		end := t.AddDate(0, 0, 1)
		to = &end
	}

	windows, err := s.windowRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("睡眠ウィンドウの取得に失敗しました: %w", err)
	}
	anomalies, err := s.anomalyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("異常の取得に失敗しました: %w", err)
	}

	report := &Report{}
	for _, w := range windows {
		if inRange(w.StartLocal, from, to) {
			report.Windows = append(report.Windows, w)
		}
	}
	for _, a := range anomalies {
		if inRange(a.TimestampLocal, from, to) {
			report.Anomalies = append(report.Anomalies, a)
		}
	}

	return report, nil
}

// inRange はtが[from, to)に入るかどうかを返す。nilの境界は条件なし。
func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
