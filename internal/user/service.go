// Package user はログインとユーザー参照のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/soulgood/internal/metrics"
	"github.com/hitoshi/soulgood/internal/model"
	"github.com/hitoshi/soulgood/internal/repository"
)

// gmailSuffix はログインを許可するメールアドレスの末尾（大文字小文字を区別しない）。
const gmailSuffix = "@gmail.com"

// TokenIssuer はログイン成功時にセッショントークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(userID int64, email string) (string, error)
}

// LoginResult はログイン結果。
type LoginResult struct {
	User  *model.User
	Token string
}

// Service はユーザー管理のサービス層。
// パスワードやワンタイムコードは使用せず、Gmailアドレスのみでログインする。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewService(userRepo repository.UserRepository, tokens TokenIssuer, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		metrics:  mc,
	}
}

// IsGmailAddress はメールアドレスが@gmail.comで終わるかを大文字小文字を区別せずに判定する。
func IsGmailAddress(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), gmailSuffix)
}

// Login はメールアドレスでユーザーを取得または作成し、トークンを発行する。
// Gmail以外のアドレスはユーザーを作成せずに拒否する。
// ユーザーの照合はメールアドレスの完全一致で行う。
func (s *Service) Login(ctx context.Context, email string) (*LoginResult, error) {
	if email == "" {
		s.metrics.RecordLogin(metrics.LoginRejected)
		return nil, model.NewValidationError("Missing email")
	}
	if !IsGmailAddress(email) {
		s.metrics.RecordLogin(metrics.LoginRejected)
		return nil, model.NewNonGmailAddressError()
	}

	user, err := s.userRepo.CreateOrGet(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得または作成に失敗しました: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))

	return &LoginResult{User: user, Token: token}, nil
}

// Get は指定IDのユーザーを返す。存在しない場合はUnauthorizedエラーを返す
// （トークンは有効だがユーザーが存在しない状態）。
func (s *Service) Get(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}
