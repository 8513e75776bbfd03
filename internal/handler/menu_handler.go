package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/soulgood/internal/catalog"
	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/model"
)

// MenuCatalog はメニューハンドラーが必要とするカタログのインターフェース。
type MenuCatalog interface {
	Categories() []catalog.CategoryCount
	List(category, query string) []model.MenuItem
	Get(id int64) (model.MenuItem, bool)
}

// MenuHandler はメニュー参照のHTTPハンドラー。
type MenuHandler struct {
	catalog MenuCatalog
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(c MenuCatalog) *MenuHandler {
	return &MenuHandler{catalog: c}
}

type listMenuResponse struct {
	OK         bool                    `json:"ok"`
	Items      []model.MenuItem        `json:"items"`
	Categories []catalog.CategoryCount `json:"categories"`
}

type menuItemResponse struct {
	OK   bool           `json:"ok"`
	Item model.MenuItem `json:"item"`
}

// List はカテゴリと検索語で絞り込んだメニューを返す。
// categoriesは絞り込みに関係なく全件の件数。
// GET /api/menu?category=&q=
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.catalog.List(q.Get("category"), q.Get("q"))
	if items == nil {
		items = []model.MenuItem{}
	}

	writeJSON(w, http.StatusOK, listMenuResponse{
		OK:         true,
		Items:      items,
		Categories: h.catalog.Categories(),
	})
}

// Get はメニュー項目を1件返す。
// GET /api/menu/{id}
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError("Invalid menu item id"))
		return
	}

	item, found := h.catalog.Get(id)
	if !found {
		handleServiceError(w, model.NewMenuItemNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, menuItemResponse{OK: true, Item: item})
}
