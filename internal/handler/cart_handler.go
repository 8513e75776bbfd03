package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
)

// defaultCartQuantity はPOST /api/cart でquantityが省略された場合の数量。
const defaultCartQuantity = 1

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	List(ctx context.Context, userID int64) ([]*model.CartLine, error)
	Add(ctx context.Context, in model.CartLineInput) (int64, error)
	// UpdateQuantity と Delete のrequesterIDはトークンのユーザーID（なければ0）。
	UpdateQuantity(ctx context.Context, requesterID, lineID int64, quantity int) error
	Delete(ctx context.Context, requesterID, lineID int64) (int64, error)
}

// CartHandler はカートのHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{
		service: service,
	}
}

// addCartRequest はカート追加リクエストのボディ。
type addCartRequest struct {
	UserID   int64   `json:"userId" validate:"required,gt=0"`
	ItemID   int64   `json:"itemId" validate:"required,gt=0"`
	Name     string  `json:"name" validate:"max=200"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity *int    `json:"quantity" validate:"omitempty,min=1"`
	Image    string  `json:"image" validate:"max=2048"`
}

// updateCartRequest は数量更新リクエストのボディ。
// 数量は上書きされ、範囲は検証しない。
type updateCartRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// cartLineResponse はカート行のAPIレスポンス。
type cartLineResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

type listCartResponse struct {
	OK    bool               `json:"ok"`
	Items []cartLineResponse `json:"items"`
}

// List はユーザーのカートを返す。
// GET /api/cart?userId=
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromQuery(w, r)
	if !ok || !checkRequester(w, r, userID) {
		return
	}

	lines, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listCartResponse{OK: true, Items: make([]cartLineResponse, len(lines))}
	for i, l := range lines {
		resp.Items[i] = toCartLineResponse(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add はカートに商品を追加する。同じ商品の行があれば数量を加算する。
// POST /api/cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError(addCartValidationMessage(err)))
		return
	}
	if !checkRequester(w, r, req.UserID) {
		return
	}

	quantity := defaultCartQuantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	id, err := h.service.Add(r.Context(), model.CartLineInput{
		UserID:   req.UserID,
		ItemID:   req.ItemID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: quantity,
		Image:    req.Image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createdResponse{OK: true, ID: id})
}

// UpdateQuantity はカート行の数量を上書きする。
// PUT /api/cart/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineIDFromPath(w, r)
	if !ok {
		return
	}

	var req updateCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Missing quantity"))
		return
	}

	requesterID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.service.UpdateQuantity(r.Context(), requesterID, lineID, *req.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Delete はカート行を削除する。
// DELETE /api/cart/{id}
func (h *CartHandler) Delete(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineIDFromPath(w, r)
	if !ok {
		return
	}

	requesterID, _ := middleware.UserIDFromContext(r.Context())
	n, err := h.service.Delete(r.Context(), requesterID, lineID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: n})
}

func lineIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Invalid cart line id"))
		return 0, false
	}
	return id, true
}

// addCartValidationMessage は最初に問題となったフィールドに応じたメッセージを返す。
func addCartValidationMessage(err error) string {
	fields := failedFields(err)
	switch {
	case fields["userId"], fields["itemId"]:
		return "Missing userId or itemId"
	case fields["quantity"]:
		return "Quantity must be at least 1"
	case fields["price"]:
		return "Invalid price"
	default:
		return "Invalid cart item"
	}
}

func toCartLineResponse(l *model.CartLine) cartLineResponse {
	return cartLineResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		ItemID:    l.ItemID,
		Name:      l.Name,
		Price:     l.Price,
		Quantity:  l.Quantity,
		Image:     l.Image,
		CreatedAt: l.CreatedAt,
	}
}
