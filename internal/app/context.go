package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/zhanbolat/datecore/internal/cache"
	"github.com/zhanbolat/datecore/internal/events"
	"github.com/zhanbolat/datecore/internal/profile"
)

// AppContext holds shared dependencies (DB, Redis, event publisher,
// profile provider, Logger).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Events     events.Publisher
	Profiles   profile.Provider
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, pub events.Publisher, profiles profile.Provider, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Events:     pub,
		Profiles:   profiles,
		Logger:     logger,
	}
}
