// Package cleanup はカートの定期クリーンアップジョブを提供する。
// 数量の上書きで1未満になったカート行はユーザーのカートに残さず、
// 一定間隔のバッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// sweepQuery は数量1未満のカート行を削除する。SQLiteとPostgreSQLの両方で有効。
const sweepQuery = `DELETE FROM cart_items WHERE quantity < 1`

// CartSweepJob は数量1未満のカート行を削除するジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type CartSweepJob struct {
	db     Executor
	logger *slog.Logger
}

// NewCartSweepJob は新しいCartSweepJobを生成する。
func NewCartSweepJob(db Executor, logger *slog.Logger) *CartSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartSweepJob{db: db, logger: logger}
}

// Run は数量1未満のカート行を削除し、削除件数を返す。
func (j *CartSweepJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, sweepQuery)
	if err != nil {
		j.logger.Error("カートクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("カートクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("カートクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *CartSweepJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
