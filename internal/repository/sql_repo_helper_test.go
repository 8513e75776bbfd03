package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hitoshi/soulgood/internal/database"
)

// setupTestDB はマイグレーション済みの一時SQLiteデータベースを返す。
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := "sqlite://" + filepath.Join(t.TempDir(), "repo.db")
	if err := database.RunMigrations(url); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	db, err := database.Open(url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// createTestUser はテスト用ユーザーを作成してIDを返す。
func createTestUser(t *testing.T, db *database.DB, email string) int64 {
	t.Helper()

	user, err := NewSQLUserRepo(db).CreateOrGet(context.Background(), email)
	if err != nil {
		t.Fatalf("CreateOrGet(%q) failed: %v", email, err)
	}
	return user.ID
}
