// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// UserRepository は監視対象ユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// ListAll は全ユーザーをuser_id昇順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)

	// Ensure はユーザー行が存在しない場合のみ作成する（冪等）。
	Ensure(ctx context.Context, user *model.User) error

	// UpdateProfile はusernameとfull_nameを更新する。
	// プロフィール情報の補完はベストエフォートであり、タイムゾーンは変更しない。
	UpdateProfile(ctx context.Context, id int64, username, fullName string) error
}

// PresenceEventFilter はプレゼンスイベント検索の絞り込み条件。
// nilのフィールドは条件に含めない。
type PresenceEventFilter struct {
	From   *time.Time
	To     *time.Time
	Status *model.Status
	Limit  int
}

// PresenceEventRepository は生プレゼンスイベントの永続化インターフェース。
// イベントは追記専用で、パイプラインからは読み取りのみ行う。
type PresenceEventRepository interface {
	// Append はプレゼンスイベントを1件追記する。
	Append(ctx context.Context, ev *model.PresenceEvent) error

	// FindLatestByUser はユーザーの最新イベントを返す。存在しない場合はnilを返す。
	FindLatestByUser(ctx context.Context, userID int64) (*model.PresenceEvent, error)

	// ListByUser はユーザーの全イベントをtimestamp昇順で返す。
	ListByUser(ctx context.Context, userID int64) ([]model.PresenceEvent, error)

	// ListByUserInRange はユーザーのイベントを[from, to]の閉区間（UTC）で
	// timestamp昇順で返す。
	ListByUserInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.PresenceEvent, error)

	// ListByUserFiltered はユーザーのイベントを絞り込み条件付きで返す。
	// 新しい順にLimit件を取得し、古い順に並べ替えて返す。
	ListByUserFiltered(ctx context.Context, userID int64, filter PresenceEventFilter) ([]model.PresenceEvent, error)

	// ListRecentOnline は全ユーザー横断でonlineイベントを新しい順にlimit件返す。
	ListRecentOnline(ctx context.Context, limit int) ([]model.PresenceEvent, error)
}

// OfflineIntervalRepository はオフライン区間（派生テーブル）の永続化インターフェース。
type OfflineIntervalRepository interface {
	// ReplaceAll はテーブル全体を単一トランザクションで置換する
	// （DELETE全件 + INSERT、コミットはまとめて1回）。
	ReplaceAll(ctx context.Context, intervals []model.OfflineInterval) error

	// ListByUser はユーザーの区間をstart_utc昇順で返す。
	ListByUser(ctx context.Context, userID int64) ([]model.OfflineInterval, error)
}

// SleepWindowRepository は睡眠ウィンドウ（派生テーブル）の永続化インターフェース。
type SleepWindowRepository interface {
	// ReplaceAll はテーブル全体を単一トランザクションで置換する。
	ReplaceAll(ctx context.Context, windows []model.SleepWindow) error

	// ListByUser はユーザーのウィンドウをsleep_start_local昇順で返す。
	ListByUser(ctx context.Context, userID int64) ([]model.SleepWindow, error)
}

// AnomalyRepository は行動異常（派生テーブル）の永続化インターフェース。
type AnomalyRepository interface {
	// ReplaceAll はテーブル全体を単一トランザクションで置換する。
	ReplaceAll(ctx context.Context, anomalies []model.Anomaly) error

	// ListByUser はユーザーの異常をtimestamp_local昇順で返す。
	ListByUser(ctx context.Context, userID int64) ([]model.Anomaly, error)
}
