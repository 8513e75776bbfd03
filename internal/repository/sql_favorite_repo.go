package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/soulgood/internal/database"
	"github.com/hitoshi/soulgood/internal/model"
)

// SQLFavoriteRepo はdatabase/sqlを使用したお気に入りリポジトリ。
type SQLFavoriteRepo struct {
	db *database.DB
}

// NewSQLFavoriteRepo はSQLFavoriteRepoを生成する。
func NewSQLFavoriteRepo(db *database.DB) *SQLFavoriteRepo {
	return &SQLFavoriteRepo{db: db}
}

// ListByUserID はユーザーのお気に入りを登録順に返す。
func (r *SQLFavoriteRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, user_id, item_id, created_at FROM favorites
		 WHERE user_id = ? ORDER BY id`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]*model.Favorite, 0)
	for rows.Next() {
		f := &model.Favorite{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.ItemID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}

	return favorites, nil
}

// Add はお気に入りを登録し、その行IDを返す。
// 競合時は同じ値で更新することでRETURNINGに既存行のIDを含める。
func (r *SQLFavoriteRepo) Add(ctx context.Context, userID, itemID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO favorites (user_id, item_id) VALUES (?, ?)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET item_id = excluded.item_id
		 RETURNING id`),
		userID, itemID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert favorite: %w", err)
	}

	return id, nil
}

// Remove はお気に入りを削除し、削除件数を返す。
func (r *SQLFavoriteRepo) Remove(ctx context.Context, userID, itemID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM favorites WHERE user_id = ? AND item_id = ?`),
		userID, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete favorite: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

// compile-time interface check
var _ FavoriteRepository = (*SQLFavoriteRepo)(nil)
