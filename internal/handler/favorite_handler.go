package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	List(ctx context.Context, userID int64) ([]*model.Favorite, error)
	Add(ctx context.Context, userID, itemID int64) (int64, error)
	Remove(ctx context.Context, userID, itemID int64) (int64, error)
}

// FavoriteHandler はお気に入りのHTTPハンドラー。
type FavoriteHandler struct {
	service FavoriteServiceInterface
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteServiceInterface) *FavoriteHandler {
	return &FavoriteHandler{
		service: service,
	}
}

// favoriteRequest はお気に入り追加・削除リクエストのボディ。
type favoriteRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	ItemID int64 `json:"itemId" validate:"required,gt=0"`
}

// favoriteResponse はお気に入り行のAPIレスポンス。
type favoriteResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

type listFavoritesResponse struct {
	OK        bool               `json:"ok"`
	Favorites []favoriteResponse `json:"favorites"`
}

type createdResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

type deletedResponse struct {
	OK      bool  `json:"ok"`
	Deleted int64 `json:"deleted"`
}

// List はユーザーのお気に入り一覧を返す。
// GET /api/favorites?userId=
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromQuery(w, r)
	if !ok || !checkRequester(w, r, userID) {
		return
	}

	favs, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listFavoritesResponse{OK: true, Favorites: make([]favoriteResponse, len(favs))}
	for i, f := range favs {
		resp.Favorites[i] = favoriteResponse{
			ID:        f.ID,
			UserID:    f.UserID,
			ItemID:    f.ItemID,
			CreatedAt: f.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add はお気に入りを登録する。登録済みの場合は既存のIDを返す。
// POST /api/favorites
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	id, err := h.service.Add(r.Context(), req.UserID, req.ItemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createdResponse{OK: true, ID: id})
}

// Remove はお気に入りを解除する。
// DELETE /api/favorites
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	n, err := h.service.Remove(r.Context(), req.UserID, req.ItemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: n})
}

func (h *FavoriteHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (favoriteRequest, bool) {
	var req favoriteRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Missing userId or itemId"))
		return req, false
	}
	return req, checkRequester(w, r, req.UserID)
}

// userIDFromQuery はクエリパラメータuserIdを解析する。
// 欠落または不正な場合は422レスポンスを書き込む。
func userIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Missing userId"))
		return 0, false
	}
	id, ok := parseID(raw)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Invalid userId"))
		return 0, false
	}
	return id, true
}
