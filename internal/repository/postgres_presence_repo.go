package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// PostgresPresenceEventRepo はPostgreSQLを使用したプレゼンスイベントリポジトリ。
type PostgresPresenceEventRepo struct {
	db *sql.DB
}

// NewPostgresPresenceEventRepo はPostgresPresenceEventRepoを生成する。
func NewPostgresPresenceEventRepo(db *sql.DB) *PostgresPresenceEventRepo {
	return &PostgresPresenceEventRepo{db: db}
}

// Append はプレゼンスイベントを1件追記する。
func (r *PostgresPresenceEventRepo) Append(ctx context.Context, ev *model.PresenceEvent) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO presence_events (user_id, timestamp_utc, raw_status, normalized_status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		ev.UserID, ev.Timestamp.UTC(), ev.RawStatus, string(ev.Status),
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("failed to append presence event: %w", err)
	}
	return nil
}

// FindLatestByUser はユーザーの最新イベントを返す。存在しない場合はnilを返す。
func (r *PostgresPresenceEventRepo) FindLatestByUser(ctx context.Context, userID int64) (*model.PresenceEvent, error) {
	ev := &model.PresenceEvent{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, timestamp_utc, raw_status, normalized_status
		 FROM presence_events
		 WHERE user_id = $1
		 ORDER BY timestamp_utc DESC, id DESC
		 LIMIT 1`,
		userID,
	).Scan(&ev.ID, &ev.UserID, &ev.Timestamp, &ev.RawStatus, &status)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest presence event: %w", err)
	}

	ev.Status = model.Status(status)
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

// ListByUser はユーザーの全イベントをtimestamp昇順で返す。
func (r *PostgresPresenceEventRepo) ListByUser(ctx context.Context, userID int64) ([]model.PresenceEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, timestamp_utc, raw_status, normalized_status
		 FROM presence_events
		 WHERE user_id = $1
		 ORDER BY timestamp_utc ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence events: %w", err)
	}
	defer rows.Close()

	return scanPresenceEvents(rows)
}

// ListByUserInRange はユーザーのイベントを[from, to]の閉区間（UTC）でtimestamp昇順で返す。
func (r *PostgresPresenceEventRepo) ListByUserInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.PresenceEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, timestamp_utc, raw_status, normalized_status
		 FROM presence_events
		 WHERE user_id = $1 AND timestamp_utc >= $2 AND timestamp_utc <= $3
		 ORDER BY timestamp_utc ASC, id ASC`,
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence events in range: %w", err)
	}
	defer rows.Close()

	return scanPresenceEvents(rows)
}

// ListByUserFiltered はユーザーのイベントを絞り込み条件付きで返す。
// 新しい順にLimit件を取得し、古い順に並べ替えて返す。
func (r *PostgresPresenceEventRepo) ListByUserFiltered(ctx context.Context, userID int64, filter PresenceEventFilter) ([]model.PresenceEvent, error) {
	var sb strings.Builder
	sb.WriteString(
		`SELECT id, user_id, timestamp_utc, raw_status, normalized_status
		 FROM presence_events
		 WHERE user_id = $1`,
	)
	args := []any{userID}

	if filter.From != nil {
		args = append(args, filter.From.UTC())
		sb.WriteString(" AND timestamp_utc >= $" + strconv.Itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		sb.WriteString(" AND timestamp_utc <= $" + strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		sb.WriteString(" AND normalized_status = $" + strconv.Itoa(len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	sb.WriteString(" ORDER BY timestamp_utc DESC, id DESC LIMIT $" + strconv.Itoa(len(args)))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list filtered presence events: %w", err)
	}
	defer rows.Close()

	events, err := scanPresenceEvents(rows)
	if err != nil {
		return nil, err
	}

	// 新しい順で取得しているため、古い順に反転して返す
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// ListRecentOnline は全ユーザー横断でonlineイベントを新しい順にlimit件返す。
func (r *PostgresPresenceEventRepo) ListRecentOnline(ctx context.Context, limit int) ([]model.PresenceEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, timestamp_utc, raw_status, normalized_status
		 FROM presence_events
		 WHERE normalized_status = $1
		 ORDER BY timestamp_utc DESC, id DESC
		 LIMIT $2`,
		string(model.StatusOnline), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent online events: %w", err)
	}
	defer rows.Close()

	return scanPresenceEvents(rows)
}

// scanPresenceEvents は行セットからイベントスライスを組み立てる共通処理。
func scanPresenceEvents(rows *sql.Rows) ([]model.PresenceEvent, error) {
	var events []model.PresenceEvent
	for rows.Next() {
		var ev model.PresenceEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Timestamp, &ev.RawStatus, &status); err != nil {
			return nil, fmt.Errorf("failed to scan presence event: %w", err)
		}
		ev.Status = model.Status(status)
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate presence events: %w", err)
	}
	return events, nil
}

// compile-time interface check
var _ PresenceEventRepository = (*PostgresPresenceEventRepo)(nil)
