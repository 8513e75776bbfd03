package database

import (
	"path/filepath"
	"testing"
)

// setupMigratedDB はテスト用の一時SQLiteデータベースにマイグレーションを適用して返す。
func setupMigratedDB(t *testing.T) (*DB, string) {
	t.Helper()

	url := "sqlite://" + filepath.Join(t.TempDir(), "migrate.db")
	if err := RunMigrations(url); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	db, err := Open(url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, url
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return count == 1
}

func TestRunMigrations_CreatesTables(t *testing.T) {
	db, _ := setupMigratedDB(t)

	for _, table := range []string{"users", "favorites", "cart_items"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s should exist after migrations", table)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	_, url := setupMigratedDB(t)

	// 2回目は ErrNoChange となりエラーにならない
	if err := RunMigrations(url); err != nil {
		t.Fatalf("second RunMigrations returned error: %v", err)
	}
}

func TestMigrations_FavoritesUniquePerUserItem(t *testing.T) {
	db, _ := setupMigratedDB(t)

	if _, err := db.Exec(`INSERT INTO users (email) VALUES ('a@gmail.com')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO favorites (user_id, item_id) VALUES (1, 5)`); err != nil {
		t.Fatalf("first favorite insert failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO favorites (user_id, item_id) VALUES (1, 5)`); err == nil {
		t.Error("duplicate (user_id, item_id) favorite should violate the unique constraint")
	}
}

func TestMigrations_CartItemsDefaults(t *testing.T) {
	db, _ := setupMigratedDB(t)

	if _, err := db.Exec(`INSERT INTO users (email) VALUES ('a@gmail.com')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO cart_items (user_id, item_id) VALUES (1, 9)`); err != nil {
		t.Fatalf("insert cart item: %v", err)
	}

	var quantity int
	var name string
	if err := db.QueryRow(`SELECT quantity, name FROM cart_items WHERE item_id = 9`).Scan(&quantity, &name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if quantity != 1 {
		t.Errorf("default quantity = %d, want 1", quantity)
	}
	if name != "" {
		t.Errorf("default name = %q, want empty", name)
	}
}

func TestNewMigrator_UnsupportedURL(t *testing.T) {
	if _, err := NewMigrator("mysql://localhost/db"); err == nil {
		t.Fatal("expected error for unsupported URL")
	}
}
