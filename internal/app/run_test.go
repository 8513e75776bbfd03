package app

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hitoshi/soulgood/internal/config"
)

// setTestEnv はテンポラリのSQLiteを使う最小構成の環境変数を設定し、DATABASE_URLを返す。
func setTestEnv(t *testing.T) string {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "soulgood.db")
	t.Setenv("JWT_SECRET", "test-jwt-secret")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("AUTO_MIGRATE", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REQUIRE_TOKEN", "")
	t.Setenv("SERVER_PORT", "0")
	return dbURL
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	return cfg
}

func TestRun_Migrate_CreatesSchema(t *testing.T) {
	dbURL := setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("Run(migrate) failed: %v", err)
	}

	db, err := sql.Open("sqlite", strings.TrimPrefix(dbURL, "sqlite://"))
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "favorites", "cart_items"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s is not queryable: %v", table, err)
		}
	}

	if !strings.Contains(buf.String(), "database migrations completed successfully") {
		t.Errorf("expected completion log, got %s", buf.String())
	}
}

func TestRun_Migrate_IsIdempotent(t *testing.T) {
	setTestEnv(t)

	for i := 0; i < 2; i++ {
		if err := Run(io.Discard, []string{"migrate"}); err != nil {
			t.Fatalf("Run(migrate) #%d failed: %v", i+1, err)
		}
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("JWT_SECRET", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRunServe_UnsupportedDatabaseURL_ReturnsError(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.DatabaseURL = "mysql://localhost/soulgood"

	if err := runServe(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unsupported database URL")
	}
}

func TestRunServe_StopsWhenContextIsCanceled(t *testing.T) {
	cfg := loadTestConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	time.Sleep(time.Second)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runServe did not stop after cancel")
	}
}

func TestNewServer_ServesAPI(t *testing.T) {
	cfg := loadTestConfig(t)

	srv, err := newServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(`{"email":"alice@gmail.com"}`))
	if err != nil {
		t.Fatalf("POST /api/login failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"go_goroutines", `soulgood_logins_total{result="success"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics should contain %q", want)
		}
	}
}

func TestNewServer_WithoutAutoMigrate_FailsOnEmptyDatabase(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.AutoMigrate = false

	srv, err := newServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(`{"email":"alice@gmail.com"}`))
	if err != nil {
		t.Fatalf("POST /api/login failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("login status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestNewServer_UnreachableRedis_ReturnsError(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	srv, err := newServer(context.Background(), cfg)
	if err == nil {
		srv.Close()
		t.Fatal("expected error for unreachable redis")
	}
}

func TestRunHealthcheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	if err := runHealthcheck(portOf(t, healthy.URL)); err != nil {
		t.Errorf("healthy server: unexpected error %v", err)
	}
	if err := runHealthcheck(portOf(t, unhealthy.URL)); err == nil {
		t.Error("unhealthy server: expected error")
	}
}

func TestRun_Healthcheck_UsesServerPort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	t.Setenv("SERVER_PORT", portOf(t, ts.URL))
	// JWT_SECRETなしでも設定読み込みをスキップして実行できること
	t.Setenv("JWT_SECRET", "")

	if err := Run(io.Discard, []string{"healthcheck"}); err != nil {
		t.Fatalf("Run(healthcheck) failed: %v", err)
	}
}

func portOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url.Parse failed: %v", err)
	}
	return u.Port()
}
