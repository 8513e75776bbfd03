package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/soulgood/internal/cartstore"
	"github.com/hitoshi/soulgood/internal/logger"
)

const (
	defaultClientAPIURL = "http://localhost:3001"
	defaultClientDir    = ".soulgood"
	clientTimeout       = 30 * time.Second
)

const clientUsage = `usage: soulgood client [-api URL] [-dir DIR] <action> [args]

actions:
  login <email>        log in and sync cart and favorites
  logout               forget the session (local cart and favorites are kept)
  sync                 replace local state with the server's
  cart                 show the cart
  add <itemId> [qty]   add a menu item to the cart
  qty <lineId> <qty>   set a line's quantity (0 removes it)
  remove <lineId>      remove a line
  clear                empty the cart
  fav <itemId>         toggle a favorite
  favs                 list favorites`

// errUsage は引数が不正な場合のエラー。
var errUsage = errors.New(clientUsage)

// client はclientサブコマンドの実行状態。
type client struct {
	out     io.Writer
	storage cartstore.LocalStorage
	api     *cartstore.APIClient
	store   *cartstore.Store
}

// runClient はローカルに保存したカート/お気に入りストアを操作する。
// 状態は-dirのディレクトリに保存し、ログイン中であれば-apiのサーバーと同期する。
// 操作結果はwに、ログは標準エラーに出力する。
func runClient(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	apiURL := fs.String("api", getEnv("SOULGOOD_API_URL", defaultClientAPIURL), "server base URL")
	dir := fs.String("dir", getEnv("SOULGOOD_CLIENT_DIR", defaultClientDir), "local storage directory")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n\n%s", err, clientUsage)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	log := logger.SetupWithLevel(os.Stderr, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	storage := cartstore.NewFileStorage(*dir)
	sess, err := cartstore.LoadSession(storage)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	api := cartstore.NewAPIClient(*apiURL, nil, log)
	if sess, err = verifySession(ctx, api, storage, sess, log); err != nil {
		return err
	}

	store := cartstore.NewStore(storage, api, cartstore.WithSession(sess), cartstore.WithLogger(log))
	store.LoadLocal()

	c := &client{out: w, storage: storage, api: api, store: store}
	return c.run(ctx, fs.Arg(0), fs.Args()[1:])
}

// verifySession は保存されたセッションのトークンを/api/meで確認する。
// サーバーがトークンを拒否した場合はセッションを削除してnilを返す。
// サーバーに接続できない場合は保存されたセッションをそのまま使う。
func verifySession(ctx context.Context, api *cartstore.APIClient, storage cartstore.LocalStorage, sess *cartstore.Session, log *slog.Logger) (*cartstore.Session, error) {
	if !sess.Authenticated() || sess.Token == "" {
		return sess, nil
	}

	current, err := api.Me(ctx, sess.Token)
	if err == nil {
		if *current != *sess {
			if err := cartstore.SaveSession(storage, current); err != nil {
				return nil, err
			}
		}
		return current, nil
	}

	var respErr *cartstore.ResponseError
	if errors.As(err, &respErr) && (respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusNotFound) {
		log.Warn("saved session was rejected by the server, logging out",
			slog.Int64("user_id", sess.UserID),
			slog.Int("status", respErr.StatusCode),
		)
		if err := cartstore.ClearSession(storage); err != nil {
			return nil, err
		}
		return nil, nil
	}

	log.Warn("could not verify saved session, continuing offline", slog.String("error", err.Error()))
	return sess, nil
}

func (c *client) run(ctx context.Context, action string, args []string) error {
	switch action {
	case "login":
		if len(args) != 1 {
			return errUsage
		}
		return c.login(ctx, args[0])
	case "logout":
		if err := cartstore.ClearSession(c.storage); err != nil {
			return err
		}
		if err := c.store.SetSession(ctx, nil); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "logged out")
		return nil
	case "sync":
		sess := c.store.Session()
		if !sess.Authenticated() {
			return errors.New("not logged in")
		}
		if err := c.store.SyncFromRemote(ctx, sess.UserID); err != nil {
			return err
		}
		c.printCart()
		return nil
	case "cart":
		c.printCart()
		return nil
	case "add":
		return c.add(ctx, args)
	case "qty":
		if len(args) != 2 {
			return errUsage
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		if err := c.store.UpdateQuantity(ctx, args[0], qty); err != nil {
			return err
		}
		c.printCart()
		return nil
	case "remove":
		if len(args) != 1 {
			return errUsage
		}
		if err := c.store.RemoveFromCart(ctx, args[0]); err != nil {
			return err
		}
		c.printCart()
		return nil
	case "clear":
		if err := c.store.ClearCart(ctx); err != nil {
			return err
		}
		c.printCart()
		return nil
	case "fav":
		if len(args) != 1 {
			return errUsage
		}
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		on, err := c.store.ToggleFavorite(ctx, itemID)
		if err != nil {
			return err
		}
		if on {
			fmt.Fprintf(c.out, "item %d added to favorites\n", itemID)
		} else {
			fmt.Fprintf(c.out, "item %d removed from favorites\n", itemID)
		}
		return nil
	case "favs":
		ids := c.store.FavoriteIDs()
		if len(ids) == 0 {
			fmt.Fprintln(c.out, "no favorites")
			return nil
		}
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintln(c.out, strings.Join(strs, " "))
		return nil
	default:
		return errUsage
	}
}

// login はサーバーにログインしてセッションを保存し、サーバーの状態を取り込む。
func (c *client) login(ctx context.Context, email string) error {
	sess, err := c.api.Login(ctx, email)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := cartstore.SaveSession(c.storage, sess); err != nil {
		return err
	}
	if err := c.store.SetSession(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s (user %d)\n", sess.Email, sess.UserID)
	return nil
}

// add はメニューから商品を取得してカートに追加する。
func (c *client) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	itemID, err := parseItemID(args[0])
	if err != nil {
		return err
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
	}

	item, err := c.api.MenuItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to look up menu item %d: %w", itemID, err)
	}
	if err := c.store.AddToCart(ctx, *item, qty); err != nil {
		return err
	}
	c.printCart()
	return nil
}

func (c *client) printCart() {
	lines := c.store.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(c.out, "cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(c.out, "%s\t%s\tx%d\t%.2f\n", l.ID, l.Name, l.Quantity, l.Price*float64(l.Quantity))
	}
	fmt.Fprintf(c.out, "items: %d\ttotal: %.2f\n", c.store.CartItemCount(), c.store.CartTotal())
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
