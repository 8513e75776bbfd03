// Package cartstore はクライアント側のカートとお気に入りのストアを提供する。
//
// 状態はメモリに保持し、変更のたびに端末のローカルストレージへ書き出す。
// セッションが認証済みの場合はサーバーAPIとも同期する。
//
// 同期方針は「お気に入りは強く整合、カートは結果整合」:
//   - お気に入りの切り替えはサーバー呼び出しが失敗すると元に戻す
//   - カートの変更は失敗しても巻き戻さず、次回のSyncFromRemoteでサーバーの状態に置き換わる
//
// ネットワークエラーは呼び出し元に返さずログに記録する。返すエラーはローカルストレージの失敗のみ。
// ローカルストレージへの書き込みに失敗した変更はメモリ上でも取り消す。
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/soulgood/internal/model"
)

// tempIDPrefix はサーバー未確定の行に付ける一時IDの接頭辞。
const tempIDPrefix = "tmp-"

// ErrInvalidQuantity はAddToCartの数量が1未満の場合のエラー。
var ErrInvalidQuantity = errors.New("数量は1以上を指定してください")

// CartLine はクライアント側のカート行。
// IDはサーバーの行ID（10進文字列）か、同期前の一時ID（tmp-<uuid>）。
type CartLine struct {
	ID       string  `json:"id"`
	ItemID   int64   `json:"item_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image,omitempty"`
}

// Temporary は行IDが一時IDかを返す。
func (l CartLine) Temporary() bool {
	return strings.HasPrefix(l.ID, tempIDPrefix)
}

// serverID はサーバーの行IDを返す。一時IDの場合はfalse。
func (l CartLine) serverID() (int64, bool) {
	id, err := strconv.ParseInt(l.ID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Store はカートとお気に入りの状態を保持する。ゴルーチン間で共有してよい。
// ネットワーク呼び出しはロックの外で行うため、並行した操作は後勝ちになる。
type Store struct {
	storage LocalStorage
	remote  Remote
	logger  *slog.Logger
	newID   func() string

	mu          sync.Mutex
	session     *Session
	lines       []CartLine
	favoriteIDs []int64
	ready       bool
}

// Option はStoreの設定を変更する。
type Option func(*Store)

// WithSession は初期セッションを設定する。初期セッションでは同期は走らない。
func WithSession(s *Session) Option {
	return func(st *Store) {
		if s != nil {
			cp := *s
			st.session = &cp
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) { st.logger = l }
}

// NewStore はStoreを生成する。remoteがnilの場合はローカルのみで動作する。
func NewStore(storage LocalStorage, remote Remote, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		remote:  remote,
		logger:  slog.Default(),
		newID:   func() string { return tempIDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadLocal はローカルストレージからカートとお気に入りを読み込む。
// 欠落または壊れたデータは空として扱い、エラーは返さない。
func (s *Store) LoadLocal() {
	var lines []CartLine
	if !s.readJSON(KeyCart, &lines) {
		lines = nil
	}
	var favs []int64
	if !s.readJSON(KeyFavorites, &favs) {
		favs = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
	s.favoriteIDs = dedupe(favs)
	s.ready = true
}

// readJSON はキーの値をdstにデコードし、成功したかを返す。
// json.Unmarshalは型の不一致でも途中までdstを埋めるため、falseの場合はdstを使わないこと。
func (s *Store) readJSON(key string, dst any) bool {
	data, found, err := s.storage.Get(key)
	if err != nil {
		s.logger.Warn("failed to read local storage", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("discarding malformed local data", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Ready はLoadLocalが完了したかを返す。
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Session は現在のセッションのコピーを返す。未ログインならnil。
func (s *Store) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// SetSession はセッションを切り替える。
// 未認証から認証済み、または別ユーザーへの切り替え時に1回だけSyncFromRemoteを実行する。
// nilを渡すとログアウト扱いになる（ローカルの状態は残す）。
func (s *Store) SetSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	var prevUserID int64
	if s.session.Authenticated() {
		prevUserID = s.session.UserID
	}
	if sess == nil {
		s.session = nil
	} else {
		cp := *sess
		s.session = &cp
	}
	s.mu.Unlock()

	if sess.Authenticated() && sess.UserID != prevUserID {
		return s.SyncFromRemote(ctx, sess.UserID)
	}
	return nil
}

// remoteSession はリモート同期すべきセッションを返す。ロックを保持して呼ぶこと。
func (s *Store) remoteSession() (Session, bool) {
	if s.remote == nil || !s.session.Authenticated() {
		return Session{}, false
	}
	return *s.session, true
}

// SyncFromRemote はサーバーのカートとお気に入りを並行に取得し、ローカルの状態を置き換える。
// どちらかの取得に失敗した場合はログに記録し、状態を変更しない。
func (s *Store) SyncFromRemote(ctx context.Context, userID int64) error {
	s.mu.Lock()
	sess, ok := s.remoteSession()
	s.mu.Unlock()
	if s.remote == nil {
		return nil
	}
	if !ok || sess.UserID != userID {
		sess = Session{UserID: userID}
	}

	var (
		remoteLines []RemoteCartLine
		remoteFavs  []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remoteLines, err = s.remote.ListCart(gctx, sess)
		return err
	})
	g.Go(func() error {
		var err error
		remoteFavs, err = s.remote.ListFavorites(gctx, sess)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to sync with backend",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	lines := make([]CartLine, len(remoteLines))
	for i, rl := range remoteLines {
		lines[i] = CartLine{
			ID:       strconv.FormatInt(rl.ID, 10),
			ItemID:   rl.ItemID,
			Name:     rl.Name,
			Price:    rl.Price,
			Quantity: rl.Quantity,
			Image:    rl.Image,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshotLocked()
	s.lines = lines
	s.favoriteIDs = dedupe(remoteFavs)
	return s.commitLocked(prev)
}

// ToggleFavorite はお気に入りを切り替え、切り替え後の状態を返す。
// 認証済みの場合はサーバーに反映し、失敗した場合は切り替えを元に戻す。
func (s *Store) ToggleFavorite(ctx context.Context, itemID int64) (bool, error) {
	s.mu.Lock()
	prev := s.snapshotLocked()
	wasFavorite := slices.Contains(s.favoriteIDs, itemID)
	if wasFavorite {
		s.favoriteIDs = removeID(s.favoriteIDs, itemID)
	} else {
		s.favoriteIDs = append(s.favoriteIDs, itemID)
	}
	sess, online := s.remoteSession()
	err := s.commitLocked(prev)
	s.mu.Unlock()
	if err != nil {
		return wasFavorite, err
	}
	if !online {
		return !wasFavorite, nil
	}

	if wasFavorite {
		err = s.remote.RemoveFavorite(ctx, sess, itemID)
	} else {
		err = s.remote.AddFavorite(ctx, sess, itemID)
	}
	if err == nil {
		return !wasFavorite, nil
	}

	s.logger.Error("failed to sync favorite with backend, reverting",
		slog.Int64("item_id", itemID),
		slog.String("error", err.Error()),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.snapshotLocked()
	if wasFavorite {
		if !slices.Contains(s.favoriteIDs, itemID) {
			s.favoriteIDs = append(s.favoriteIDs, itemID)
		}
	} else {
		s.favoriteIDs = removeID(s.favoriteIDs, itemID)
	}
	if err := s.commitLocked(prev); err != nil {
		return !wasFavorite, err
	}
	return wasFavorite, nil
}

// AddToCart は商品をカートに追加する。同じ商品の行があれば数量を加算する。
// 新しい行には一時IDを付け、サーバーへの追加が成功したらサーバーの行IDに置き換える。
// サーバーへの追加が失敗しても追加は取り消さない。
func (s *Store) AddToCart(ctx context.Context, item model.MenuItem, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	prev := s.snapshotLocked()
	if i := s.indexByItemLocked(item.ID); i >= 0 {
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, CartLine{
			ID:       s.newID(),
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: quantity,
			Image:    item.Image,
		})
	}
	sess, online := s.remoteSession()
	err := s.commitLocked(prev)
	s.mu.Unlock()
	if err != nil || !online {
		return err
	}

	serverID, err := s.remote.AddCartLine(ctx, sess, CartLine{
		ItemID:   item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: quantity,
		Image:    item.Image,
	})
	if err != nil {
		s.logger.Error("failed to sync cart with backend",
			slog.Int64("item_id", item.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if serverID <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByItemLocked(item.ID)
	if i < 0 {
		// 同期中に削除された
		return nil
	}
	prev = s.snapshotLocked()
	s.lines[i].ID = strconv.FormatInt(serverID, 10)
	return s.commitLocked(prev)
}

// UpdateQuantity は行の数量を設定する。quantityが1未満の場合はRemoveFromCartと同じ。
// サーバーへの反映は失敗しても巻き戻さない。
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveFromCart(ctx, lineID)
	}

	s.mu.Lock()
	i := s.indexByIDLocked(lineID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("cart line not found", slog.String("line_id", lineID))
		return nil
	}
	prev := s.snapshotLocked()
	s.lines[i].Quantity = quantity
	line := s.lines[i]
	sess, online := s.remoteSession()
	err := s.commitLocked(prev)
	s.mu.Unlock()
	if err != nil || !online {
		return err
	}

	serverID, ok := line.serverID()
	if !ok {
		s.logger.Warn("skipping remote update of unsynced cart line", slog.String("line_id", lineID))
		return nil
	}
	if err := s.remote.UpdateCartLine(ctx, sess, serverID, quantity); err != nil {
		s.logger.Error("failed to update quantity in backend",
			slog.String("line_id", lineID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// RemoveFromCart は行を削除し、サーバーからもベストエフォートで削除する。
func (s *Store) RemoveFromCart(ctx context.Context, lineID string) error {
	s.mu.Lock()
	i := s.indexByIDLocked(lineID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("cart line not found", slog.String("line_id", lineID))
		return nil
	}
	prev := s.snapshotLocked()
	line := s.lines[i]
	s.lines = slices.Delete(s.lines, i, i+1)
	sess, online := s.remoteSession()
	err := s.commitLocked(prev)
	s.mu.Unlock()
	if err != nil || !online {
		return err
	}

	s.deleteRemote(ctx, sess, line)
	return nil
}

// ClearCart はカートを空にし、サーバーの各行をベストエフォートで削除する。
// 削除は1行ずつ行い、一部が失敗してもローカルのカートは空のまま。
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	prev := s.snapshotLocked()
	lines := s.lines
	s.lines = nil
	sess, online := s.remoteSession()
	err := s.commitLocked(prev)
	s.mu.Unlock()
	if err != nil || !online {
		return err
	}

	for _, line := range lines {
		s.deleteRemote(ctx, sess, line)
	}
	return nil
}

func (s *Store) deleteRemote(ctx context.Context, sess Session, line CartLine) {
	serverID, ok := line.serverID()
	if !ok {
		s.logger.Warn("skipping remote delete of unsynced cart line", slog.String("line_id", line.ID))
		return
	}
	if err := s.remote.DeleteCartLine(ctx, sess, serverID); err != nil {
		s.logger.Error("failed to remove item from backend",
			slog.String("line_id", line.ID),
			slog.String("error", err.Error()),
		)
	}
}

// CartTotal は価格×数量の合計を返す。
func (s *Store) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, l := range s.lines {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

// CartItemCount は数量の合計を返す。
func (s *Store) CartItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Lines はカート行のコピーを返す。
func (s *Store) Lines() []CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

// FavoriteIDs はお気に入り商品IDのコピーを登録順に返す。
func (s *Store) FavoriteIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.favoriteIDs)
}

func (s *Store) IsFavorite(itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.favoriteIDs, itemID)
}

// CartLine は商品のカート行を返す。
func (s *Store) CartLine(itemID int64) (CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByItemLocked(itemID); i >= 0 {
		return s.lines[i], true
	}
	return CartLine{}, false
}

// ItemQuantity は商品のカート内数量を返す。カートになければ0。
func (s *Store) ItemQuantity(itemID int64) int {
	line, ok := s.CartLine(itemID)
	if !ok {
		return 0
	}
	return line.Quantity
}

func (s *Store) indexByItemLocked(itemID int64) int {
	return slices.IndexFunc(s.lines, func(l CartLine) bool { return l.ItemID == itemID })
}

func (s *Store) indexByIDLocked(lineID string) int {
	return slices.IndexFunc(s.lines, func(l CartLine) bool { return l.ID == lineID })
}

// snapshot は書き込み失敗時に戻すための状態のコピー。
type snapshot struct {
	lines       []CartLine
	favoriteIDs []int64
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{lines: slices.Clone(s.lines), favoriteIDs: slices.Clone(s.favoriteIDs)}
}

// commitLocked は現在の状態を書き出す。書き込みに失敗した場合はメモリをprevに戻し、
// ストレージも可能な範囲でprevに書き戻す。メモリとローカルストレージは常に同じ状態を指す。
func (s *Store) commitLocked(prev snapshot) error {
	err := s.persistLocked()
	if err == nil {
		return nil
	}
	s.lines, s.favoriteIDs = prev.lines, prev.favoriteIDs
	if rerr := s.persistLocked(); rerr != nil {
		s.logger.Warn("failed to restore local storage", slog.String("error", rerr.Error()))
	}
	return err
}

// persistLocked はカートとお気に入りの全件をローカルストレージに書き出す。ロックを保持して呼ぶこと。
func (s *Store) persistLocked() error {
	lines := s.lines
	if lines == nil {
		lines = []CartLine{}
	}
	favs := s.favoriteIDs
	if favs == nil {
		favs = []int64{}
	}

	cartData, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("カートのシリアライズに失敗しました: %w", err)
	}
	favData, err := json.Marshal(favs)
	if err != nil {
		return fmt.Errorf("お気に入りのシリアライズに失敗しました: %w", err)
	}
	if err := s.storage.Set(KeyCart, cartData); err != nil {
		return err
	}
	return s.storage.Set(KeyFavorites, favData)
}

func removeID(ids []int64, id int64) []int64 {
	return slices.DeleteFunc(ids, func(v int64) bool { return v == id })
}

// dedupe は順序を保ったまま重複を取り除く。
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
