package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/soulgood/internal/catalog"
	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
	"github.com/hitoshi/soulgood/internal/user"
)

// --- モック定義 ---

type mockUserService struct {
	loginFn func(ctx context.Context, email string) (*user.LoginResult, error)
	getFn   func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockUserService) Login(ctx context.Context, email string) (*user.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

type mockFavoriteService struct {
	listFn   func(ctx context.Context, userID int64) ([]*model.Favorite, error)
	addFn    func(ctx context.Context, userID, itemID int64) (int64, error)
	removeFn func(ctx context.Context, userID, itemID int64) (int64, error)
}

func (m *mockFavoriteService) List(ctx context.Context, userID int64) ([]*model.Favorite, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockFavoriteService) Add(ctx context.Context, userID, itemID int64) (int64, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, itemID)
	}
	return 0, nil
}

func (m *mockFavoriteService) Remove(ctx context.Context, userID, itemID int64) (int64, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, itemID)
	}
	return 0, nil
}

type mockCartService struct {
	listFn           func(ctx context.Context, userID int64) ([]*model.CartLine, error)
	addFn            func(ctx context.Context, in model.CartLineInput) (int64, error)
	updateQuantityFn func(ctx context.Context, requesterID, lineID int64, quantity int) error
	deleteFn         func(ctx context.Context, requesterID, lineID int64) (int64, error)
}

func (m *mockCartService) List(ctx context.Context, userID int64) ([]*model.CartLine, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockCartService) Add(ctx context.Context, in model.CartLineInput) (int64, error) {
	if m.addFn != nil {
		return m.addFn(ctx, in)
	}
	return 0, nil
}

func (m *mockCartService) UpdateQuantity(ctx context.Context, requesterID, lineID int64, quantity int) error {
	if m.updateQuantityFn != nil {
		return m.updateQuantityFn(ctx, requesterID, lineID, quantity)
	}
	return nil
}

func (m *mockCartService) Delete(ctx context.Context, requesterID, lineID int64) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, lineID)
	}
	return 0, nil
}

type mockCatalog struct {
	items      []model.MenuItem
	categories []catalog.CategoryCount
}

func (m *mockCatalog) Categories() []catalog.CategoryCount { return m.categories }

func (m *mockCatalog) List(category, query string) []model.MenuItem {
	var out []model.MenuItem
	for _, it := range m.items {
		if category == "" || category == catalog.AllCategory || it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

func (m *mockCatalog) Get(id int64) (model.MenuItem, bool) {
	for _, it := range m.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.MenuItem{}, false
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- ヘルパー ---

// decodeBody はレスポンスボディをmapにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// assertError はエラーレスポンスのステータスとメッセージを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantMessage string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if wantMessage != "" && body.Error != wantMessage {
		t.Errorf("error = %q, want %q", body.Error, wantMessage)
	}
}
