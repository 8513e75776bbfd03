package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/soulgood/internal/database"
	"github.com/hitoshi/soulgood/internal/model"
)

// cartLineColumns はカート行のSELECT列。scanCartLineの順序と一致させること。
const cartLineColumns = `id, user_id, item_id, name, price, quantity, image, created_at`

// SQLCartRepo はdatabase/sqlを使用したカートリポジトリ。
type SQLCartRepo struct {
	db *database.DB
}

// NewSQLCartRepo はSQLCartRepoを生成する。
func NewSQLCartRepo(db *database.DB) *SQLCartRepo {
	return &SQLCartRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartLine(s rowScanner) (*model.CartLine, error) {
	line := &model.CartLine{}
	err := s.Scan(
		&line.ID, &line.UserID, &line.ItemID,
		&line.Name, &line.Price, &line.Quantity, &line.Image,
		&line.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ListByUserID はユーザーのカート行を追加順に返す。
func (r *SQLCartRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT `+cartLineColumns+` FROM cart_items WHERE user_id = ? ORDER BY id`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	lines := make([]*model.CartLine, 0)
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return lines, nil
}

// FindByID は指定IDのカート行を取得する。見つからない場合はnilを返す。
func (r *SQLCartRepo) FindByID(ctx context.Context, id int64) (*model.CartLine, error) {
	line, err := scanCartLine(r.db.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+cartLineColumns+` FROM cart_items WHERE id = ?`),
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart item by ID: %w", err)
	}
	return line, nil
}

// Upsert は(user_id, item_id)の行が存在すれば数量を加算し、なければ新規作成する。
// 既存行の名前・価格・画像は上書きしない。
func (r *SQLCartRepo) Upsert(ctx context.Context, in model.CartLineInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		`INSERT INTO cart_items (user_id, item_id, name, price, quantity, image)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity
		 RETURNING id`),
		in.UserID, in.ItemID, in.Name, in.Price, in.Quantity, in.Image,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return id, nil
}

// SetQuantity はカート行の数量を無条件に上書きする。該当行がなくてもエラーにしない。
func (r *SQLCartRepo) SetQuantity(ctx context.Context, id int64, quantity int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE cart_items SET quantity = ? WHERE id = ?`),
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item quantity: %w", err)
	}
	return nil
}

// Delete は主キーでカート行を削除し、削除件数を返す。
func (r *SQLCartRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM cart_items WHERE id = ?`),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cart item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

// compile-time interface check
var _ CartRepository = (*SQLCartRepo)(nil)
