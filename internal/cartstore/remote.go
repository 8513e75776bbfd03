package cartstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/soulgood/internal/model"
)

// maxErrorBodySize はエラーレスポンスとして読み取るボディの上限。
const maxErrorBodySize = 64 << 10

// RemoteCartLine はサーバーが返すカート行。
type RemoteCartLine struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// Remote はStoreが使用するサーバーAPIのインターフェース。
// 各呼び出しは1回だけ試行し、リトライしない。
type Remote interface {
	ListCart(ctx context.Context, sess Session) ([]RemoteCartLine, error)
	ListFavorites(ctx context.Context, sess Session) ([]int64, error)
	AddFavorite(ctx context.Context, sess Session, itemID int64) error
	RemoveFavorite(ctx context.Context, sess Session, itemID int64) error
	// AddCartLine はサーバーの行IDを返す。
	AddCartLine(ctx context.Context, sess Session, line CartLine) (int64, error)
	UpdateCartLine(ctx context.Context, sess Session, lineID int64, quantity int) error
	DeleteCartLine(ctx context.Context, sess Session, lineID int64) error
}

var _ Remote = (*APIClient)(nil)

// ResponseError はサーバーが2xx以外を返した場合のエラー。
type ResponseError struct {
	StatusCode int
	// Message はレスポンスのerrorフィールド。
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("サーバーがステータス %d を返しました", e.StatusCode)
	}
	return fmt.Sprintf("サーバーがステータス %d を返しました: %s", e.StatusCode, e.Message)
}

// APIClient はサーバーのHTTP APIクライアント。
type APIClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewAPIClient はbaseURL（例: http://localhost:3001）に対するAPIClientを生成する。
// タイムアウトはhttpClientの設定に従う。
func NewAPIClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type userPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Login はGmailアドレスでログインし、セッションを返す。
func (c *APIClient) Login(ctx context.Context, email string) (*Session, error) {
	var resp struct {
		User  userPayload `json:"user"`
		Token string      `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}
	return &Session{UserID: resp.User.ID, Email: resp.User.Email, Token: resp.Token}, nil
}

// Me はトークンのユーザーを問い合わせ、有効なセッションを返す。
func (c *APIClient) Me(ctx context.Context, token string) (*Session, error) {
	var resp struct {
		User userPayload `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", token, nil, &resp); err != nil {
		return nil, err
	}
	return &Session{UserID: resp.User.ID, Email: resp.User.Email, Token: token}, nil
}

// MenuItem はメニュー項目を1件取得する。
func (c *APIClient) MenuItem(ctx context.Context, id int64) (*model.MenuItem, error) {
	var resp struct {
		Item model.MenuItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/menu/"+strconv.FormatInt(id, 10), "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// ListCart はユーザーのカートを取得する。
func (c *APIClient) ListCart(ctx context.Context, sess Session) ([]RemoteCartLine, error) {
	var resp struct {
		Items []RemoteCartLine `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cart?"+userQuery(sess), sess.Token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListFavorites はユーザーのお気に入り商品IDを取得する。
func (c *APIClient) ListFavorites(ctx context.Context, sess Session) ([]int64, error) {
	var resp struct {
		Favorites []struct {
			ItemID int64 `json:"item_id"`
		} `json:"favorites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/favorites?"+userQuery(sess), sess.Token, nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]int64, len(resp.Favorites))
	for i, f := range resp.Favorites {
		ids[i] = f.ItemID
	}
	return ids, nil
}

type favoritePayload struct {
	UserID int64 `json:"userId"`
	ItemID int64 `json:"itemId"`
}

func (c *APIClient) AddFavorite(ctx context.Context, sess Session, itemID int64) error {
	return c.do(ctx, http.MethodPost, "/api/favorites", sess.Token, favoritePayload{sess.UserID, itemID}, nil)
}

func (c *APIClient) RemoveFavorite(ctx context.Context, sess Session, itemID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites", sess.Token, favoritePayload{sess.UserID, itemID}, nil)
}

// AddCartLine はカートに商品を追加し、サーバーの行IDを返す。
func (c *APIClient) AddCartLine(ctx context.Context, sess Session, line CartLine) (int64, error) {
	body := struct {
		UserID   int64   `json:"userId"`
		ItemID   int64   `json:"itemId"`
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
		Image    string  `json:"image"`
	}{sess.UserID, line.ItemID, line.Name, line.Price, line.Quantity, line.Image}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/cart", sess.Token, body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *APIClient) UpdateCartLine(ctx context.Context, sess Session, lineID int64, quantity int) error {
	body := struct {
		Quantity int `json:"quantity"`
	}{quantity}
	return c.do(ctx, http.MethodPut, "/api/cart/"+strconv.FormatInt(lineID, 10), sess.Token, body, nil)
}

func (c *APIClient) DeleteCartLine(ctx context.Context, sess Session, lineID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/cart/"+strconv.FormatInt(lineID, 10), sess.Token, nil, nil)
}

func userQuery(sess Session) string {
	return url.Values{"userId": {strconv.FormatInt(sess.UserID, 10)}}.Encode()
}

// do はJSONリクエストを送信し、2xxならレスポンスをoutにデコードする。
func (c *APIClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s の呼び出しに失敗しました: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		_ = json.Unmarshal(data, &errBody)
		c.logger.Debug("API returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &ResponseError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
