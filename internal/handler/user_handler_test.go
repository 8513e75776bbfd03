package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
	"github.com/hitoshi/soulgood/internal/user"
)

func TestUserHandler_Login_Success(t *testing.T) {
	svc := &mockUserService{
		loginFn: func(ctx context.Context, email string) (*user.LoginResult, error) {
			if email != "alice@gmail.com" {
				t.Errorf("email = %q, want %q", email, "alice@gmail.com")
			}
			return &user.LoginResult{
				User:  &model.User{ID: 7, Email: email},
				Token: "signed-token",
			}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"alice@gmail.com"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["ok"] != true {
		t.Errorf("ok = %v, want true", body["ok"])
	}
	u, _ := body["user"].(map[string]any)
	if u["id"] != float64(7) || u["email"] != "alice@gmail.com" {
		t.Errorf("user = %v", u)
	}
	if body["token"] != "signed-token" {
		t.Errorf("token = %v", body["token"])
	}
}

func TestUserHandler_Login_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"missing email", model.NewValidationError("Missing email"), "Missing email"},
		{"non gmail", model.NewNonGmailAddressError(), "Please use your Gmail address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				loginFn: func(ctx context.Context, email string) (*user.LoginResult, error) {
					return nil, tt.err
				},
			}
			h := NewUserHandler(svc)

			w := httptest.NewRecorder()
			h.Login(w, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"bob@yahoo.com"}`)))

			assertError(t, w, http.StatusUnprocessableEntity, tt.message)
		})
	}
}

func TestUserHandler_Login_InvalidJSON(t *testing.T) {
	called := false
	svc := &mockUserService{
		loginFn: func(ctx context.Context, email string) (*user.LoginResult, error) {
			called = true
			return nil, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{`)))

	assertError(t, w, http.StatusBadRequest, "")
	if called {
		t.Error("service should not be called for malformed body")
	}
}

func TestUserHandler_Login_StorageErrorPassesThrough(t *testing.T) {
	svc := &mockUserService{
		loginFn: func(ctx context.Context, email string) (*user.LoginResult, error) {
			return nil, errors.New("database is locked")
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"alice@gmail.com"}`)))

	assertError(t, w, http.StatusInternalServerError, "database is locked")
}

func TestUserHandler_Me(t *testing.T) {
	svc := &mockUserService{
		getFn: func(ctx context.Context, userID int64) (*model.User, error) {
			return &model.User{ID: userID, Email: "alice@gmail.com"}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), 3))
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	u, _ := body["user"].(map[string]any)
	if u["id"] != float64(3) {
		t.Errorf("user.id = %v, want 3", u["id"])
	}
}

func TestUserHandler_Me_WithoutToken(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assertError(t, w, http.StatusUnauthorized, "")
}
