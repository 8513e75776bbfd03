// Package favorite はお気に入り管理のドメインロジックを提供する。
package favorite

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
)

// Service はお気に入り管理のサービス層。
// 一覧はキャッシュが設定されていればキャッシュし、変更時に破棄する。
type Service struct {
	repo     repository.FavoriteRepository
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使用しない。
func NewService(repo repository.FavoriteRepository, c cache.Cache, cacheTTL time.Duration, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:     repo,
		cache:    c,
		cacheTTL: cacheTTL,
		metrics:  mc,
	}
}

// List はユーザーのお気に入りを登録順に返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Favorite, error) {
	key := cache.FavoritesKey(userID)

	if s.cache != nil {
		var cached []*model.Favorite
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCacheLookup(false)
		default:
			slog.Warn("favorites cache read failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	favorites, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, favorites, s.cacheTTL); err != nil {
			slog.Warn("favorites cache write failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return favorites, nil
}

// Add はお気に入りを登録し、行IDを返す。登録済みの場合は既存行のIDを返す。
func (s *Service) Add(ctx context.Context, userID, itemID int64) (int64, error) {
	id, err := s.repo.Add(ctx, userID, itemID)
	if err != nil {
		return 0, fmt.Errorf("お気に入りの登録に失敗しました: %w", err)
	}

	s.invalidate(ctx, userID)
	s.metrics.RecordFavoriteOp("add")
	return id, nil
}

// Remove はお気に入りを削除し、削除件数を返す。該当なしは0を返しエラーにしない。
func (s *Service) Remove(ctx context.Context, userID, itemID int64) (int64, error) {
	n, err := s.repo.Remove(ctx, userID, itemID)
	if err != nil {
		return 0, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}

	if n > 0 {
		s.invalidate(ctx, userID)
	}
	s.metrics.RecordFavoriteOp("remove")
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.FavoritesKey(userID)); err != nil {
		slog.Warn("favorites cache invalidation failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
