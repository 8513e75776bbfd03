// Package model はドメインモデルを定義する。
package model

import "time"

// User はメールアドレスで識別されるストアの利用者を表す。
// 初回ログイン時に作成され、このシステムからは削除されない。
type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
