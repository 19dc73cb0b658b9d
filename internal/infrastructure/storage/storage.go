package storage

import (
	"fmt"

	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

// Open 依設定選擇儲存實作
func Open(cfg config.StorageConfig) (plan.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		common.LogInfo("Using in-memory storage")
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		common.LogInfo("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
