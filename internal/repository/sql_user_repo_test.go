package repository

import (
	"context"
	"testing"
)

func TestSQLUserRepo_CreateOrGet_CreatesNewUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLUserRepo(db)

	user, err := repo.CreateOrGet(context.Background(), "alice@gmail.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID <= 0 {
		t.Errorf("expected positive ID, got %d", user.ID)
	}
	if user.Email != "alice@gmail.com" {
		t.Errorf("Email = %q, want %q", user.Email, "alice@gmail.com")
	}
}

func TestSQLUserRepo_CreateOrGet_ReturnsExistingUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLUserRepo(db)
	ctx := context.Background()

	first, err := repo.CreateOrGet(ctx, "alice@gmail.com")
	if err != nil {
		t.Fatalf("first CreateOrGet failed: %v", err)
	}
	second, err := repo.CreateOrGet(ctx, "alice@gmail.com")
	if err != nil {
		t.Fatalf("second CreateOrGet failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same ID for same email, got %d and %d", first.ID, second.ID)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user row, got %d", count)
	}
}

// メールアドレスの照合は大文字小文字を区別する
func TestSQLUserRepo_CreateOrGet_EmailIsCaseSensitive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLUserRepo(db)
	ctx := context.Background()

	lower, err := repo.CreateOrGet(ctx, "bob@gmail.com")
	if err != nil {
		t.Fatalf("CreateOrGet failed: %v", err)
	}
	upper, err := repo.CreateOrGet(ctx, "Bob@Gmail.com")
	if err != nil {
		t.Fatalf("CreateOrGet failed: %v", err)
	}

	if lower.ID == upper.ID {
		t.Error("expected different users for differently-cased emails")
	}
}

func TestSQLUserRepo_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLUserRepo(db)
	ctx := context.Background()

	created, err := repo.CreateOrGet(ctx, "carol@gmail.com")
	if err != nil {
		t.Fatalf("CreateOrGet failed: %v", err)
	}

	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected user, got nil")
	}
	if found.Email != "carol@gmail.com" {
		t.Errorf("Email = %q, want %q", found.Email, "carol@gmail.com")
	}
	if found.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestSQLUserRepo_FindByID_NotFoundReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLUserRepo(db)

	found, err := repo.FindByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != nil {
		t.Errorf("expected nil, got %+v", found)
	}
}
