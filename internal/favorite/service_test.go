package favorite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/soulgood/internal/cache"
	"github.com/hitoshi/soulgood/internal/model"
)

// --- モック ---

type mockFavoriteRepo struct {
	listFn   func(ctx context.Context, userID int64) ([]*model.Favorite, error)
	addFn    func(ctx context.Context, userID, itemID int64) (int64, error)
	removeFn func(ctx context.Context, userID, itemID int64) (int64, error)

	listCalls int
}

func (m *mockFavoriteRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.Favorite, error) {
	m.listCalls++
	return m.listFn(ctx, userID)
}
func (m *mockFavoriteRepo) Add(ctx context.Context, userID, itemID int64) (int64, error) {
	return m.addFn(ctx, userID, itemID)
}
func (m *mockFavoriteRepo) Remove(ctx context.Context, userID, itemID int64) (int64, error) {
	return m.removeFn(ctx, userID, itemID)
}

// mockCache はJSONでシリアライズしてmapに保持するキャッシュ。
type mockCache struct {
	data    map[string][]byte
	deleted []string
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetJSON(ctx context.Context, key string, dest any) error {
	if m.getErr != nil {
		return m.getErr
	}
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}
func (m *mockCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}
func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func favoritesFor(userID int64, itemIDs ...int64) []*model.Favorite {
	favorites := make([]*model.Favorite, len(itemIDs))
	for i, itemID := range itemIDs {
		favorites[i] = &model.Favorite{ID: int64(i + 1), UserID: userID, ItemID: itemID}
	}
	return favorites
}

// --- テスト ---

func TestService_List_WithoutCache(t *testing.T) {
	repo := &mockFavoriteRepo{
		listFn: func(ctx context.Context, userID int64) ([]*model.Favorite, error) {
			return favoritesFor(userID, 3, 1), nil
		},
	}
	svc := NewService(repo, nil, time.Minute, nil)

	favorites, err := svc.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(favorites) != 2 || favorites[0].ItemID != 3 || favorites[1].ItemID != 1 {
		t.Errorf("unexpected favorites: %+v", favorites)
	}
}

// TestService_List_UsesCache は2回目の一覧取得がキャッシュから返ることを検証する。
func TestService_List_UsesCache(t *testing.T) {
	repo := &mockFavoriteRepo{
		listFn: func(ctx context.Context, userID int64) ([]*model.Favorite, error) {
			return favoritesFor(userID, 8), nil
		},
	}
	c := newMockCache()
	svc := NewService(repo, c, time.Minute, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx, 5); err != nil {
		t.Fatalf("first List failed: %v", err)
	}
	favorites, err := svc.List(ctx, 5)
	if err != nil {
		t.Fatalf("second List failed: %v", err)
	}

	if repo.listCalls != 1 {
		t.Errorf("expected repository to be called once, got %d", repo.listCalls)
	}
	if len(favorites) != 1 || favorites[0].ItemID != 8 {
		t.Errorf("unexpected cached favorites: %+v", favorites)
	}
}

// TestService_List_CacheErrorFallsBackToRepository はキャッシュ障害時もリポジトリから返すことを検証する。
func TestService_List_CacheErrorFallsBackToRepository(t *testing.T) {
	repo := &mockFavoriteRepo{
		listFn: func(ctx context.Context, userID int64) ([]*model.Favorite, error) {
			return favoritesFor(userID, 2), nil
		},
	}
	c := newMockCache()
	c.getErr = errors.New("connection refused")
	svc := NewService(repo, c, time.Minute, nil)

	favorites, err := svc.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(favorites) != 1 {
		t.Errorf("expected 1 favorite, got %d", len(favorites))
	}
}

func TestService_List_RepositoryError(t *testing.T) {
	repo := &mockFavoriteRepo{
		listFn: func(ctx context.Context, userID int64) ([]*model.Favorite, error) {
			return nil, errors.New("no such table: favorites")
		},
	}
	svc := NewService(repo, nil, time.Minute, nil)

	if _, err := svc.List(context.Background(), 5); err == nil {
		t.Fatal("expected error")
	}
}

// TestService_Add_InvalidatesCache は登録後にキャッシュが破棄されることを検証する。
func TestService_Add_InvalidatesCache(t *testing.T) {
	repo := &mockFavoriteRepo{
		listFn: func(ctx context.Context, userID int64) ([]*model.Favorite, error) {
			return favoritesFor(userID), nil
		},
		addFn: func(ctx context.Context, userID, itemID int64) (int64, error) {
			return 42, nil
		},
	}
	c := newMockCache()
	svc := NewService(repo, c, time.Minute, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx, 5); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	id, err := svc.Add(ctx, 5, 9)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	if _, ok := c.data[cache.FavoritesKey(5)]; ok {
		t.Error("expected favorites cache to be invalidated")
	}
}

// TestService_Remove_NothingDeleted は該当なしの削除が0件でエラーにならないことを検証する。
func TestService_Remove_NothingDeleted(t *testing.T) {
	repo := &mockFavoriteRepo{
		removeFn: func(ctx context.Context, userID, itemID int64) (int64, error) {
			return 0, nil
		},
	}
	c := newMockCache()
	svc := NewService(repo, c, time.Minute, nil)

	n, err := svc.Remove(context.Background(), 5, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
	if len(c.deleted) != 0 {
		t.Errorf("cache should not be touched when nothing was deleted, got %v", c.deleted)
	}
}

func TestService_Remove_InvalidatesCache(t *testing.T) {
	repo := &mockFavoriteRepo{
		removeFn: func(ctx context.Context, userID, itemID int64) (int64, error) {
			return 1, nil
		},
	}
	c := newMockCache()
	svc := NewService(repo, c, time.Minute, nil)

	n, err := svc.Remove(context.Background(), 5, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if len(c.deleted) != 1 || c.deleted[0] != cache.FavoritesKey(5) {
		t.Errorf("expected favorites key to be deleted, got %v", c.deleted)
	}
}
