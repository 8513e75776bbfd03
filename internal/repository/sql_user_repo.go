package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/soulgood/internal/database"
	"github.com/hitoshi/soulgood/internal/model"
)

// SQLUserRepo はdatabase/sqlを使用したユーザーリポジトリ。
// SQLiteとPostgreSQLの両方で動作するSQLのみを使用する。
type SQLUserRepo struct {
	db *database.DB
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(db *database.DB) *SQLUserRepo {
	return &SQLUserRepo{db: db}
}

// CreateOrGet はメールアドレスでユーザーを取得または作成する。
// 既存ユーザーの場合はupdated_at（最終ログイン時刻）のみ更新する。
func (r *SQLUserRepo) CreateOrGet(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO users (email, updated_at) VALUES (?, CURRENT_TIMESTAMP)
		 ON CONFLICT (email) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		 RETURNING id, email`),
		email,
	).Scan(&user.ID, &user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, email, created_at, updated_at FROM users WHERE id = ?`),
		id,
	).Scan(&user.ID, &user.Email, &user.CreatedAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.Time
	}

	return user, nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
