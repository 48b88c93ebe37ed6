package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mitsuki/nemuri/internal/model"
)

// PostgresOfflineIntervalRepo はPostgreSQLを使用したオフライン区間リポジトリ。
type PostgresOfflineIntervalRepo struct {
	db *sql.DB
}

// NewPostgresOfflineIntervalRepo はPostgresOfflineIntervalRepoを生成する。
func NewPostgresOfflineIntervalRepo(db *sql.DB) *PostgresOfflineIntervalRepo {
	return &PostgresOfflineIntervalRepo{db: db}
}

// ReplaceAll はoffline_intervalsテーブル全体を単一トランザクションで置換する。
// DELETE全件とINSERTをまとめてコミットするため、途中で失敗した実行が
// 古い行と新しい行の混在を残すことはない（全置換が原子性の境界）。
func (r *PostgresOfflineIntervalRepo) ReplaceAll(ctx context.Context, intervals []model.OfflineInterval) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM offline_intervals`); err != nil {
		return fmt.Errorf("failed to clear offline_intervals: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO offline_intervals (user_id, start_utc, end_utc, duration_seconds)
		 VALUES ($1, $2, $3, $4)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, iv := range intervals {
		if _, err := stmt.ExecContext(ctx, iv.UserID, iv.StartUTC.UTC(), iv.EndUTC.UTC(), iv.DurationSeconds); err != nil {
			return fmt.Errorf("failed to insert offline interval: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUser はユーザーの区間をstart_utc昇順で返す。
func (r *PostgresOfflineIntervalRepo) ListByUser(ctx context.Context, userID int64) ([]model.OfflineInterval, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, start_utc, end_utc, duration_seconds
		 FROM offline_intervals
		 WHERE user_id = $1
		 ORDER BY start_utc ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline intervals: %w", err)
	}
	defer rows.Close()

	var intervals []model.OfflineInterval
	for rows.Next() {
		var iv model.OfflineInterval
		if err := rows.Scan(&iv.ID, &iv.UserID, &iv.StartUTC, &iv.EndUTC, &iv.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan offline interval: %w", err)
		}
		iv.StartUTC = iv.StartUTC.UTC()
		iv.EndUTC = iv.EndUTC.UTC()
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offline intervals: %w", err)
	}

	return intervals, nil
}

// compile-time interface check
var _ OfflineIntervalRepository = (*PostgresOfflineIntervalRepo)(nil)
