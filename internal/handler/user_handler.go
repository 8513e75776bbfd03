package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
	"github.com/hitoshi/soulgood/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Login はGmailアドレスでユーザーを作成または取得し、トークンを発行する。
	Login(ctx context.Context, email string) (*user.LoginResult, error)
	// Get はユーザーを取得する。
	Get(ctx context.Context, userID int64) (*model.User, error)
}

// UserHandler はログインとユーザー参照のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email string `json:"email"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	OK    bool         `json:"ok"`
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type meResponse struct {
	OK   bool         `json:"ok"`
	User userResponse `json:"user"`
}

// Login はメールアドレスでログインする。
// POST /api/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		OK:    true,
		User:  toUserResponse(result.User),
		Token: result.Token,
	})
}

// Me はトークンのユーザーを返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{OK: true, User: toUserResponse(u)})
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}
