package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	logger2 "github.com/cuzic/webreq-sniffer-sub000/internal/logger"
)

// ErrNotFound 键从未被写入
var ErrNotFound = errors.New("storage: key not found")

// KV 持久化键值存储。每个键对应一份 JSON 文档。
type KV interface {
	// Get 读取键对应的完整 JSON 文档
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 覆盖写入完整 JSON 文档
	Set(ctx context.Context, key string, value []byte) error
	// Update 将 partial 的顶层字段合并进已存文档，持久化后返回合并结果
	Update(ctx context.Context, key string, partial []byte) ([]byte, error)
}

// Record 键值记录表
type Record struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store 基于 sqlite 的 KV 实现
type Store struct {
	db *gorm.DB
}

// Open 打开数据库并完成迁移
func Open(dsn, prefix string, l logger2.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("迁移键值表失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Get 读取键对应的文档
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(rec.Value), nil
}

// Set 覆盖写入
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	rec := Record{Key: key, Value: string(value), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&rec).Error
}

// Update 顶层 JSON 合并后持久化，返回合并后的完整文档。
// 键不存在时视为向空文档合并。
func (s *Store) Update(ctx context.Context, key string, partial []byte) ([]byte, error) {
	if !gjson.ValidBytes(partial) {
		return nil, fmt.Errorf("无效的 JSON 片段: key=%s", key)
	}
	current, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		current = []byte("{}")
	}

	merged := current
	var mergeErr error
	gjson.ParseBytes(partial).ForEach(func(k, v gjson.Result) bool {
		merged, mergeErr = sjson.SetRawBytes(merged, k.String(), []byte(v.Raw))
		return mergeErr == nil
	})
	if mergeErr != nil {
		return nil, fmt.Errorf("合并字段失败: key=%s: %w", key, mergeErr)
	}

	if err := s.Set(ctx, key, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
