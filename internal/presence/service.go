// Package presence は生プレゼンスイベントの照会ロジックを提供する。
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/repository"
)

// ユーザー別イベント照会のlimit制約。
const (
	defaultEventLimit = 1000
	maxEventLimit     = 5000
)

// 横断online照会のlimit制約。
const (
	defaultOnlineLimit = 100
	maxOnlineLimit     = 2000
)

// EventQuery はユーザー別イベント照会のクエリパラメータ。
// From/To はRFC3339形式、Statusは正規化ステータス名（いずれも空文字列は条件なし）。
// Limitが0以下の場合はデフォルト値を使用する。
type EventQuery struct {
	From   string
	To     string
	Status string
	Limit  int
}

// Service は生プレゼンスイベント照会のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	eventRepo repository.PresenceEventRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, eventRepo repository.PresenceEventRepository) *Service {
	return &Service{
		userRepo:  userRepo,
		eventRepo: eventRepo,
	}
}

// ListUserEvents はユーザーの生イベントを絞り込み条件付きで取得する。
// 新しい方からLimit件を選び、古い順に並べて返す。
func (s *Service) ListUserEvents(ctx context.Context, userID int64, query EventQuery) ([]model.PresenceEvent, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	filter := repository.PresenceEventFilter{
		Limit: clampLimit(query.Limit, defaultEventLimit, maxEventLimit),
	}

	if query.From != "" {
		t, err := time.Parse(time.RFC3339, query.From)
		if err != nil {
			return nil, model.NewInvalidRangeError(query.From)
		}
		utc := t.UTC()
		filter.From = &utc
	}
	if query.To != "" {
		t, err := time.Parse(time.RFC3339, query.To)
		if err != nil {
			return nil, model.NewInvalidRangeError(query.To)
		}
		utc := t.UTC()
		filter.To = &utc
	}
	if query.Status != "" {
		status := model.Status(query.Status)
		if !status.IsValid() {
			return nil, model.NewInvalidStatusError(query.Status)
		}
		filter.Status = &status
	}

	events, err := s.eventRepo.ListByUserFiltered(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	return events, nil
}

// ListRecentOnline は全ユーザー横断で最新のonlineイベントを新しい順に取得する。
func (s *Service) ListRecentOnline(ctx context.Context, limit int) ([]model.PresenceEvent, error) {
	events, err := s.eventRepo.ListRecentOnline(ctx, clampLimit(limit, defaultOnlineLimit, maxOnlineLimit))
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	return events, nil
}

// clampLimit はlimitを[1, max]にクランプする。0以下はデフォルト値を使用する。
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
