package cartstore

import (
	"encoding/json"
	"fmt"
)

// Session はログイン済みユーザーの識別情報とトークン。
// UserIDが正の場合のみ認証済みとして扱う。
type Session struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Token  string `json:"-"`
}

// Authenticated はセッションが認証済みかを返す。nilでもよい。
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID > 0
}

// SaveSession はセッションのユーザー情報とトークンをローカルストレージに保存する。
func SaveSession(storage LocalStorage, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("セッションのシリアライズに失敗しました: %w", err)
	}
	if err := storage.Set(KeyUser, data); err != nil {
		return err
	}
	return storage.Set(KeyToken, []byte(s.Token))
}

// LoadSession は保存されたセッションを読み込む。保存されていない場合はnil, nilを返す。
func LoadSession(storage LocalStorage) (*Session, error) {
	data, found, err := storage.Get(KeyUser)
	if err != nil || !found {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("保存されたセッションの解析に失敗しました: %w", err)
	}

	token, _, err := storage.Get(KeyToken)
	if err != nil {
		return nil, err
	}
	s.Token = string(token)
	return &s, nil
}

// ClearSession は保存されたセッションを削除する。
func ClearSession(storage LocalStorage) error {
	if err := storage.Delete(KeyUser); err != nil {
		return err
	}
	return storage.Delete(KeyToken)
}
