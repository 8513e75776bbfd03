// Package model はドメインモデルを定義する。
package model

import "time"

// Favorite はユーザーがお気に入り登録したメニュー項目を表す。
// (UserID, ItemID) の組はストレージ層で一意。
type Favorite struct {
	ID        int64
	UserID    int64
	ItemID    int64
	CreatedAt time.Time
}

// CartLine はユーザーのカート内の1行を表す。
// (UserID, ItemID) ごとに1行で、同じ商品の追加は数量の加算になる。
type CartLine struct {
	ID        int64
	UserID    int64
	ItemID    int64
	Name      string
	Price     float64
	Quantity  int
	Image     string
	CreatedAt time.Time
}

// CartLineInput はカート行の追加（アップサート）に必要な値。
type CartLineInput struct {
	UserID   int64
	ItemID   int64
	Name     string
	Price    float64
	Quantity int
	Image    string
}

// MenuItem は同梱カタログの読み取り専用メニュー項目。
// バックエンドでは永続化しない。
type MenuItem struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Badge       string   `json:"badge,omitempty"`
	Tags        []string `json:"tags"`
	Calories    int      `json:"calories"`
	Protein     float64  `json:"protein"`
}
