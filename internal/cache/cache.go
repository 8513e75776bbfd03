// Package cache はユーザー単位の一覧（お気に入り・カート）を保持する任意のキャッシュを提供する。
// REDIS_URLが未設定の場合、サービスはキャッシュなしで動作する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss はキーが存在しないことを表す。
var ErrMiss = errors.New("cache: key not found")

// Cache はキャッシュ操作のインターフェース。
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// FavoritesKey はユーザーのお気に入り一覧のキャッシュキーを返す。
func FavoritesKey(userID int64) string {
	return fmt.Sprintf("soulgood:favorites:%d", userID)
}

// CartKey はユーザーのカート一覧のキャッシュキーを返す。
func CartKey(userID int64) string {
	return fmt.Sprintf("soulgood:cart:%d", userID)
}

// RedisCache はgo-redisを使用したCache実装。
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache はREDIS_URLから接続を作成し、Pingで疎通を確認する。
// URLとして解析できない場合はhost:portとして扱う。
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// GetJSON はキーの値をJSONとしてdestに復元する。キーがなければErrMissを返す。
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON は値をJSONにして保存する。
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。存在しないキーはエラーにしない。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
