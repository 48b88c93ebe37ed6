package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// PostgresSleepWindowRepo はPostgreSQLを使用した睡眠ウィンドウリポジトリ。
// ローカル時刻はオフセット付きRFC3339テキストとして保存する
// （ユーザーのローカル壁時計の値をそのまま保持するため）。
type PostgresSleepWindowRepo struct {
	db *sql.DB
}

// NewPostgresSleepWindowRepo はPostgresSleepWindowRepoを生成する。
func NewPostgresSleepWindowRepo(db *sql.DB) *PostgresSleepWindowRepo {
	return &PostgresSleepWindowRepo{db: db}
}

// ReplaceAll はsleep_windowsテーブル全体を単一トランザクションで置換する。
func (r *PostgresSleepWindowRepo) ReplaceAll(ctx context.Context, windows []model.SleepWindow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sleep_windows`); err != nil {
		return fmt.Errorf("failed to clear sleep_windows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sleep_windows (user_id, sleep_start_local, sleep_end_local, duration_minutes, confidence)
		 VALUES ($1, $2, $3, $4, $5)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		_, err := stmt.ExecContext(ctx,
			w.UserID,
			w.StartLocal.Format(time.RFC3339),
			w.EndLocal.Format(time.RFC3339),
			w.DurationMinutes,
			w.Confidence,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sleep window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUser はユーザーのウィンドウをsleep_start_local昇順で返す。
func (r *PostgresSleepWindowRepo) ListByUser(ctx context.Context, userID int64) ([]model.SleepWindow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, sleep_start_local, sleep_end_local, duration_minutes, confidence
		 FROM sleep_windows
		 WHERE user_id = $1
		 ORDER BY sleep_start_local ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sleep windows: %w", err)
	}
	defer rows.Close()

	return scanSleepWindows(rows)
}

// scanSleepWindows は行セットからウィンドウスライスを組み立てる共通処理。
func scanSleepWindows(rows *sql.Rows) ([]model.SleepWindow, error) {
	var windows []model.SleepWindow
	for rows.Next() {
		var w model.SleepWindow
		var startStr, endStr string
		if err := rows.Scan(&w.ID, &w.UserID, &startStr, &endStr, &w.DurationMinutes, &w.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan sleep window: %w", err)
		}

		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sleep_start_local %q: %w", startStr, err)
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sleep_end_local %q: %w", endStr, err)
		}

		w.StartLocal = start
		w.EndLocal = end
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sleep windows: %w", err)
	}
	return windows, nil
}

// compile-time interface check
var _ SleepWindowRepository = (*PostgresSleepWindowRepo)(nil)
