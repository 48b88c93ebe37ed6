package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mitsuki/nemuri/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(full_name, ''), timezone
		 FROM users WHERE user_id = $1`,
		id,
	).Scan(&user.ID, &user.Username, &user.FullName, &user.Timezone)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// ListAll は全ユーザーをuser_id昇順で返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, COALESCE(username, ''), COALESCE(full_name, ''), timezone
		 FROM users ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.Timezone); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Ensure はユーザー行が存在しない場合のみ作成する（冪等）。
func (r *PostgresUserRepo) Ensure(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, full_name, timezone)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		user.ID, user.Username, user.FullName, user.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// UpdateProfile はusernameとfull_nameを更新する。タイムゾーンは変更しない。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id int64, username, fullName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = NULLIF($2, ''), full_name = NULLIF($3, '') WHERE user_id = $1`,
		id, username, fullName,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
