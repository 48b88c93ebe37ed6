package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
)

// PostgresAnomalyRepo はPostgreSQLを使用した行動異常リポジトリ。
type PostgresAnomalyRepo struct {
	db *sql.DB
}

// NewPostgresAnomalyRepo はPostgresAnomalyRepoを生成する。
func NewPostgresAnomalyRepo(db *sql.DB) *PostgresAnomalyRepo {
	return &PostgresAnomalyRepo{db: db}
}

// ReplaceAll はanomaliesテーブル全体を単一トランザクションで置換する。
func (r *PostgresAnomalyRepo) ReplaceAll(ctx context.Context, anomalies []model.Anomaly) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM anomalies`); err != nil {
		return fmt.Errorf("failed to clear anomalies: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO anomalies (user_id, type, timestamp_local, metadata_json)
		 VALUES ($1, $2, $3, $4)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		_, err := stmt.ExecContext(ctx,
			a.UserID,
			string(a.Type),
			a.TimestampLocal.Format(time.RFC3339),
			a.MetadataJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert anomaly: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUser はユーザーの異常をtimestamp_local昇順で返す。
func (r *PostgresAnomalyRepo) ListByUser(ctx context.Context, userID int64) ([]model.Anomaly, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, timestamp_local, COALESCE(metadata_json, '')
		 FROM anomalies
		 WHERE user_id = $1
		 ORDER BY timestamp_local ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var typ, tsStr string
		if err := rows.Scan(&a.ID, &a.UserID, &typ, &tsStr, &a.MetadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}

		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp_local %q: %w", tsStr, err)
		}

		a.Type = model.AnomalyType(typ)
		a.TimestampLocal = ts
		anomalies = append(anomalies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomalies: %w", err)
	}

	return anomalies, nil
}

// compile-time interface check
var _ AnomalyRepository = (*PostgresAnomalyRepo)(nil)
