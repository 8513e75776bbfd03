package cartstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ローカルストレージの固定キー。
const (
	KeyCart      = "soulgood_cart"
	KeyFavorites = "soulgood_favorites"
	KeyUser      = "soulgood_user"
	KeyToken     = "soulgood_token"
)

// LocalStorage はキーごとにバイト列を保存する端末ローカルの永続ストレージ。
type LocalStorage interface {
	// Get はキーの値を返す。存在しない場合はfoundがfalse。
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	// Delete はキーを削除する。存在しない場合もエラーにしない。
	Delete(key string) error
}

var (
	_ LocalStorage = (*FileStorage)(nil)
	_ LocalStorage = (*MemoryStorage)(nil)
)

// FileStorage はディレクトリ内にキーごとのJSONファイルとして保存するLocalStorage。
// 書き込みは一時ファイルへ書いてからrenameするため、途中で中断しても既存の値は壊れない。
type FileStorage struct {
	dir string
}

// NewFileStorage はdirを保存先とするFileStorageを生成する。
// ディレクトリは最初の書き込み時に作成される。
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("不正なストレージキーです: %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get はキーのファイルを読み込む。
func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ローカルストレージの読み込みに失敗しました: %w", err)
	}
	return data, true, nil
}

// Set はキーのファイルをアトミックに書き換える。
func (s *FileStorage) Set(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("ローカルストレージのディレクトリ作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ローカルストレージの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Delete はキーのファイルを削除する。
func (s *FileStorage) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ローカルストレージの削除に失敗しました: %w", err)
	}
	return nil
}

// MemoryStorage はメモリ上のLocalStorage。テストや永続化不要の用途に使う。
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStorage は空のMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
