// Package cart はカート管理のドメインロジックを提供する。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/soulgood/internal/cache"
	"github.com/hitoshi/soulgood/internal/metrics"
	"github.com/hitoshi/soulgood/internal/model"
	"github.com/hitoshi/soulgood/internal/repository"
	"github.com/hitoshi/soulgood/internal/security"
)

// Service はカート管理のサービス層。
//
// 行ID指定の操作（数量変更・削除）で requesterID に0以外を渡した場合、
// 行の所有者と一致しなければForbiddenを返す。0はトークンなしのリクエストを表し、所有者を検証しない。
type Service struct {
	repo      repository.CartRepository
	sanitizer security.FieldSanitizer
	cache     cache.Cache
	cacheTTL  time.Duration
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使用しない。
func NewService(
	repo repository.CartRepository,
	sanitizer security.FieldSanitizer,
	c cache.Cache,
	cacheTTL time.Duration,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		cache:     c,
		cacheTTL:  cacheTTL,
		metrics:   mc,
	}
}

// List はユーザーのカート行を追加順に返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.CartLine, error) {
	key := cache.CartKey(userID)

	if s.cache != nil {
		var cached []*model.CartLine
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCacheLookup(false)
		default:
			slog.Warn("cart cache read failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	lines, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, lines, s.cacheTTL); err != nil {
			slog.Warn("cart cache write failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return lines, nil
}

// Add は商品をカートに追加する。同じ商品の行があれば数量を加算する。
// 商品名と画像はマークアップを除去してから保存する。
func (s *Service) Add(ctx context.Context, in model.CartLineInput) (int64, error) {
	in.Name = s.sanitizer.SanitizeText(in.Name)
	in.Image = s.sanitizer.SanitizeImage(in.Image)

	id, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}

	s.invalidate(ctx, in.UserID)
	s.metrics.RecordCartOp("add")
	return id, nil
}

// UpdateQuantity はカート行の数量を上書きする。行が存在しなくてもエラーにしない。
func (s *Service) UpdateQuantity(ctx context.Context, requesterID, lineID int64, quantity int) error {
	line, err := s.findOwned(ctx, requesterID, lineID)
	if err != nil {
		return err
	}

	if err := s.repo.SetQuantity(ctx, lineID, quantity); err != nil {
		return fmt.Errorf("数量の更新に失敗しました: %w", err)
	}

	if line != nil {
		s.invalidate(ctx, line.UserID)
	}
	s.metrics.RecordCartOp("update")
	return nil
}

// Delete はカート行を削除し、削除件数を返す。該当なしは0を返す。
func (s *Service) Delete(ctx context.Context, requesterID, lineID int64) (int64, error) {
	line, err := s.findOwned(ctx, requesterID, lineID)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.Delete(ctx, lineID)
	if err != nil {
		return 0, fmt.Errorf("カート行の削除に失敗しました: %w", err)
	}

	if line != nil && n > 0 {
		s.invalidate(ctx, line.UserID)
	}
	s.metrics.RecordCartOp("delete")
	return n, nil
}

// findOwned は行を取得し、requesterIDが指定されていれば所有者を検証する。
func (s *Service) findOwned(ctx context.Context, requesterID, lineID int64) (*model.CartLine, error) {
	line, err := s.repo.FindByID(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("カート行の取得に失敗しました: %w", err)
	}
	if line != nil && requesterID != 0 && line.UserID != requesterID {
		return nil, model.NewForbiddenError()
	}
	return line, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.CartKey(userID)); err != nil {
		slog.Warn("cart cache invalidation failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
