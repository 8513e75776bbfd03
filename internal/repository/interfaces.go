// Package repository はデータ永続化のインターフェースを定義する。
// 各操作は単一のSQL文で完結し、トランザクションは使用しない。
package repository

import (
	"context"

	"github.com/hitoshi/soulgood/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// CreateOrGet はメールアドレス（大文字小文字を区別する完全一致）でユーザーを取得し、
	// 存在しなければ作成する。単一のUPSERT文で実行するため同時ログインでも重複しない。
	CreateOrGet(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// FavoriteRepository はお気に入りの永続化インターフェース。
type FavoriteRepository interface {
	// ListByUserID はユーザーのお気に入りを登録順に返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.Favorite, error)

	// Add はお気に入りを登録し、その行IDを返す。
	// 既に登録済みの場合は既存行のIDを返す（UNIQUE(user_id, item_id)）。
	Add(ctx context.Context, userID, itemID int64) (int64, error)

	// Remove はお気に入りを削除し、削除件数を返す。該当なしは0件でエラーにしない。
	Remove(ctx context.Context, userID, itemID int64) (int64, error)
}

// CartRepository はカート行の永続化インターフェース。
type CartRepository interface {
	// ListByUserID はユーザーのカート行を追加順に返す。
	ListByUserID(ctx context.Context, userID int64) ([]*model.CartLine, error)

	// FindByID は指定IDのカート行を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.CartLine, error)

	// Upsert は(user_id, item_id)の行が存在すれば数量を加算し、なければ新規作成する。
	// いずれの場合も対象行のIDを返す。
	Upsert(ctx context.Context, in model.CartLineInput) (int64, error)

	// SetQuantity はカート行の数量を無条件に上書きする。
	SetQuantity(ctx context.Context, id int64, quantity int) error

	// Delete は主キーでカート行を削除し、削除件数を返す。
	Delete(ctx context.Context, id int64) (int64, error)
}
