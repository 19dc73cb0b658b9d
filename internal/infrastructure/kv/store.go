// Package kv 提供免費方案每日替換標記與客戶端續跑標記使用的鍵值存放
package kv

import (
	"context"
	"time"
)

// Store 鍵值存放
type Store interface {
	// Get 鍵不存在或已過期時 ok 為 false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set ttl 為 0 表示使用存放的預設存活時間
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
