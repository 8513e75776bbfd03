// Package catalog は同梱のメニューカタログを提供する。
// カタログは読み取り専用で、起動時に埋め込みJSONから一度だけ読み込む。
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/soulgood/internal/model"
)

// AllCategory は全カテゴリを表す疑似カテゴリ名。
const AllCategory = "All"

//go:embed menu.json
var menuJSON []byte

// CategoryCount はカテゴリ名とその項目数。
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Catalog はメニュー項目の一覧と検索機能を提供する。
type Catalog struct {
	items      []model.MenuItem
	byID       map[int64]model.MenuItem
	categories []CategoryCount
}

// Load は埋め込みのmenu.jsonからCatalogを生成する。
func Load() (*Catalog, error) {
	return Parse(menuJSON)
}

// Parse はJSON配列からCatalogを生成する。IDの重複はエラーとする。
func Parse(data []byte) (*Catalog, error) {
	var items []model.MenuItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse menu catalog: %w", err)
	}
	return New(items)
}

// New は項目のスライスからCatalogを生成する。
func New(items []model.MenuItem) (*Catalog, error) {
	c := &Catalog{
		items: items,
		byID:  make(map[int64]model.MenuItem, len(items)),
	}

	counts := make(map[string]int)
	var order []string
	for _, item := range items {
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate menu item id: %d", item.ID)
		}
		c.byID[item.ID] = item

		if _, seen := counts[item.Category]; !seen {
			order = append(order, item.Category)
		}
		counts[item.Category]++
	}

	// "All"を先頭に、以降は初出順
	c.categories = append(c.categories, CategoryCount{Name: AllCategory, Count: len(items)})
	for _, name := range order {
		c.categories = append(c.categories, CategoryCount{Name: name, Count: counts[name]})
	}

	return c, nil
}

// Categories はカテゴリごとの項目数を返す。先頭は常に"All"。
func (c *Catalog) Categories() []CategoryCount {
	out := make([]CategoryCount, len(c.categories))
	copy(out, c.categories)
	return out
}

// List はカテゴリと検索語で項目を絞り込む。
// categoryが空または"All"なら全カテゴリ。queryは名前と説明に対する大文字小文字を区別しない部分一致。
func (c *Catalog) List(category, query string) []model.MenuItem {
	q := strings.ToLower(strings.TrimSpace(query))

	result := make([]model.MenuItem, 0, len(c.items))
	for _, item := range c.items {
		if category != "" && category != AllCategory && item.Category != category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(item.Name), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) {
			continue
		}
		result = append(result, item)
	}
	return result
}

// Get は指定IDの項目を返す。
func (c *Catalog) Get(id int64) (model.MenuItem, bool) {
	item, ok := c.byID[id]
	return item, ok
}
