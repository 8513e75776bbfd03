package repository

import (
	"context"
	"testing"
)

func TestSQLFavoriteRepo_AddAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLFavoriteRepo(db)
	ctx := context.Background()
	userID := createTestUser(t, db, "fav@gmail.com")

	for _, itemID := range []int64{7, 3, 11} {
		if _, err := repo.Add(ctx, userID, itemID); err != nil {
			t.Fatalf("Add(%d) failed: %v", itemID, err)
		}
	}

	favorites, err := repo.ListByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(favorites) != 3 {
		t.Fatalf("expected 3 favorites, got %d", len(favorites))
	}

	// 登録順で返る
	want := []int64{7, 3, 11}
	for i, f := range favorites {
		if f.ItemID != want[i] {
			t.Errorf("favorites[%d].ItemID = %d, want %d", i, f.ItemID, want[i])
		}
		if f.UserID != userID {
			t.Errorf("favorites[%d].UserID = %d, want %d", i, f.UserID, userID)
		}
	}
}

func TestSQLFavoriteRepo_Add_DuplicateReturnsExistingID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLFavoriteRepo(db)
	ctx := context.Background()
	userID := createTestUser(t, db, "dup@gmail.com")

	first, err := repo.Add(ctx, userID, 5)
	if err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	second, err := repo.Add(ctx, userID, 5)
	if err != nil {
		t.Fatalf("second Add failed: %v", err)
	}

	if first != second {
		t.Errorf("expected same ID for duplicate favorite, got %d and %d", first, second)
	}

	favorites, err := repo.ListByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(favorites) != 1 {
		t.Errorf("expected 1 favorite, got %d", len(favorites))
	}
}

func TestSQLFavoriteRepo_ListByUserID_EmptyIsNotNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLFavoriteRepo(db)
	userID := createTestUser(t, db, "empty@gmail.com")

	favorites, err := repo.ListByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if favorites == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestSQLFavoriteRepo_Remove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLFavoriteRepo(db)
	ctx := context.Background()
	userID := createTestUser(t, db, "rm@gmail.com")

	if _, err := repo.Add(ctx, userID, 42); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	n, err := repo.Remove(ctx, userID, 42)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row removed, got %d", n)
	}

	// 存在しない行の削除は0件でエラーにしない
	n, err = repo.Remove(ctx, userID, 42)
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows removed, got %d", n)
	}
}

func TestSQLFavoriteRepo_IsolatedPerUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLFavoriteRepo(db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@gmail.com")
	bob := createTestUser(t, db, "bob@gmail.com")

	if _, err := repo.Add(ctx, alice, 1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	favorites, err := repo.ListByUserID(ctx, bob)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(favorites) != 0 {
		t.Errorf("expected bob to have no favorites, got %d", len(favorites))
	}
}
