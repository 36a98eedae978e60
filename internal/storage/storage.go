package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	feedCacheKey     = "headlines:feed"
	currentFeedKey   = "current"
	redisPingTimeout = 3 * time.Second
)

// ErrNotFound 表示还没有任何缓存的 feed
var ErrNotFound = errors.New("storage: cached feed not found")

// CacheError 缓存读写失败；不影响内存里已经生成的 feed
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// FeedSnapshot 最近一次 feed 的持久化副本，只保留一行，后写覆盖前写
type FeedSnapshot struct {
	Key         string         `gorm:"column:feed_key;primaryKey;size:32" json:"key"`
	RunID       string         `gorm:"size:36" json:"runId"`
	GeneratedAt time.Time      `gorm:"index" json:"generatedAt"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store 两级缓存：Redis 优先，PostgreSQL 兜底。任一方可为空。
type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore dsn 为空时只使用 Redis；redisAddr 为空时只使用数据库
func NewStore(dsn, redisAddr string) (*Store, error) {
	s := &Store{}

	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&FeedSnapshot{}); err != nil {
			return nil, err
		}
		s.DB = db
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

// SaveFeed 写入两级缓存。两边都会尝试，返回第一个错误。
func (s *Store) SaveFeed(ctx context.Context, feed *processor.Feed) error {
	if feed == nil {
		return &CacheError{Op: "save", Err: errors.New("nil feed")}
	}
	bs, err := json.Marshal(feed)
	if err != nil {
		return &CacheError{Op: "encode", Err: err}
	}

	var firstErr error
	if s.Redis != nil {
		// 不设置过期时间：只有新的 feed 才会替换它
		if err := s.Redis.Set(ctx, feedCacheKey, bs, 0).Err(); err != nil {
			firstErr = &CacheError{Op: "redis set", Err: err}
		}
	}

	if s.DB != nil {
		snap := &FeedSnapshot{
			Key:         currentFeedKey,
			RunID:       feed.RunID,
			GeneratedAt: feed.GeneratedAt,
			Payload:     datatypes.JSON(bs),
		}
		err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feed_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_id", "generated_at", "payload", "updated_at"}),
		}).Create(snap).Error
		if err != nil && firstErr == nil {
			firstErr = &CacheError{Op: "db upsert", Err: err}
		}
	}

	return firstErr
}

// LoadFeed 先读 Redis，未命中再读数据库；都没有时返回 ErrNotFound
func (s *Store) LoadFeed(ctx context.Context) (*processor.Feed, error) {
	if s.Redis != nil {
		bs, err := s.Redis.Get(ctx, feedCacheKey).Bytes()
		switch {
		case err == nil:
			var feed processor.Feed
			if err := json.Unmarshal(bs, &feed); err == nil {
				return &feed, nil
			}
			log.Printf("warn: cached feed in redis is corrupt, fallback to db")
		case errors.Is(err, redis.Nil):
		default:
			log.Printf("warn: redis get feed failed: %v", err)
		}
	}

	if s.DB == nil {
		return nil, ErrNotFound
	}

	var snap FeedSnapshot
	if err := s.DB.WithContext(ctx).Where("feed_key = ?", currentFeedKey).First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &CacheError{Op: "db load", Err: err}
	}

	var feed processor.Feed
	if err := json.Unmarshal(snap.Payload, &feed); err != nil {
		return nil, &CacheError{Op: "decode", Err: err}
	}

	// 回填 Redis，下次直接命中
	if s.Redis != nil {
		_ = s.Redis.Set(ctx, feedCacheKey, []byte(snap.Payload), 0).Err()
	}
	return &feed, nil
}
