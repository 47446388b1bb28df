package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/storage"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// 持久化键名
const (
	KeySettings = "settings"
	KeyLogData  = "logData"
)

// DefaultTTL 缓存默认有效期
const DefaultTTL = 5 * time.Second

// snapshot 缓存快照，零值 fetchedAt 表示未缓存
type snapshot[T any] struct {
	value     T
	fetchedAt time.Time
}

// Accessor 持久化存储前的读穿/写穿缓存。
// 所有读取返回独立副本，调用方不能越过写穿路径修改缓存内容。
type Accessor struct {
	store storage.KV
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger

	mu       sync.Mutex
	settings snapshot[model.Settings]
	capture  snapshot[model.CaptureState]
}

// New 创建状态访问器。now 可注入以便测试中模拟缓存过期。
func New(store storage.KV, ttl time.Duration, now func() time.Time, l logger.Logger) *Accessor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Accessor{store: store, ttl: ttl, now: now, log: l}
}

// EnsureDefaults 为从未写入过的键写入安装默认值
func (a *Accessor) EnsureDefaults(ctx context.Context) error {
	if _, err := a.store.Get(ctx, KeySettings); errors.Is(err, storage.ErrNotFound) {
		b, err := json.Marshal(model.DefaultSettings())
		if err != nil {
			return err
		}
		if err := a.store.Set(ctx, KeySettings, b); err != nil {
			return fmt.Errorf("写入默认配置失败: %w", err)
		}
		a.log.Info("已写入默认配置")
	} else if err != nil {
		return err
	}

	if _, err := a.store.Get(ctx, KeyLogData); errors.Is(err, storage.ErrNotFound) {
		b, err := json.Marshal(model.DefaultCaptureState())
		if err != nil {
			return err
		}
		if err := a.store.Set(ctx, KeyLogData, b); err != nil {
			return fmt.Errorf("写入默认捕获状态失败: %w", err)
		}
		a.log.Info("已写入默认捕获状态")
	} else if err != nil {
		return err
	}
	return nil
}

// GetSettings 读取配置。缓存有效且未强制刷新时不访问存储。
func (a *Accessor) GetSettings(ctx context.Context, forceRefresh bool) (model.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !forceRefresh && a.fresh(a.settings.fetchedAt) {
		return cloneSettings(a.settings.value), nil
	}

	b, err := a.store.Get(ctx, KeySettings)
	if err != nil {
		return model.Settings{}, fmt.Errorf("读取配置失败: %w", err)
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(b, &s); err != nil {
		return model.Settings{}, fmt.Errorf("解析配置失败: %w", err)
	}
	a.settings = snapshot[model.Settings]{value: s, fetchedAt: a.now()}
	return cloneSettings(s), nil
}

// GetCaptureState 读取捕获状态。缓存有效且未强制刷新时不访问存储。
func (a *Accessor) GetCaptureState(ctx context.Context, forceRefresh bool) (model.CaptureState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !forceRefresh && a.fresh(a.capture.fetchedAt) {
		return cloneCaptureState(a.capture.value), nil
	}

	b, err := a.store.Get(ctx, KeyLogData)
	if err != nil {
		return model.CaptureState{}, fmt.Errorf("读取捕获状态失败: %w", err)
	}
	cs := model.DefaultCaptureState()
	if err := json.Unmarshal(b, &cs); err != nil {
		return model.CaptureState{}, fmt.Errorf("解析捕获状态失败: %w", err)
	}
	a.capture = snapshot[model.CaptureState]{value: cs, fetchedAt: a.now()}
	return cloneCaptureState(cs), nil
}

// UpdateSettings 部分更新配置：先写穿存储，再以写后的权威值刷新缓存
func (a *Accessor) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	partial, err := json.Marshal(patch)
	if err != nil {
		return model.Settings{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	merged, err := a.store.Update(ctx, KeySettings, partial)
	if err != nil {
		return model.Settings{}, fmt.Errorf("更新配置失败: %w", err)
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(merged, &s); err != nil {
		return model.Settings{}, fmt.Errorf("解析更新后配置失败: %w", err)
	}
	a.settings = snapshot[model.Settings]{value: s, fetchedAt: a.now()}
	return cloneSettings(s), nil
}

// UpdateCaptureState 部分更新捕获状态：先写穿存储，再以写后的权威值刷新缓存
func (a *Accessor) UpdateCaptureState(ctx context.Context, patch model.CapturePatch) (model.CaptureState, error) {
	partial, err := json.Marshal(patch)
	if err != nil {
		return model.CaptureState{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	merged, err := a.store.Update(ctx, KeyLogData, partial)
	if err != nil {
		return model.CaptureState{}, fmt.Errorf("更新捕获状态失败: %w", err)
	}
	cs := model.DefaultCaptureState()
	if err := json.Unmarshal(merged, &cs); err != nil {
		return model.CaptureState{}, fmt.Errorf("解析更新后捕获状态失败: %w", err)
	}
	a.capture = snapshot[model.CaptureState]{value: cs, fetchedAt: a.now()}
	return cloneCaptureState(cs), nil
}

// SetSettings 整体替换配置
func (a *Accessor) SetSettings(ctx context.Context, s model.Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Set(ctx, KeySettings, b); err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}
	a.settings = snapshot[model.Settings]{value: cloneSettings(s), fetchedAt: a.now()}
	return nil
}

// SetCaptureState 整体替换捕获状态
func (a *Accessor) SetCaptureState(ctx context.Context, cs model.CaptureState) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Set(ctx, KeyLogData, b); err != nil {
		return fmt.Errorf("写入捕获状态失败: %w", err)
	}
	a.capture = snapshot[model.CaptureState]{value: cloneCaptureState(cs), fetchedAt: a.now()}
	return nil
}

// Invalidate 无条件清空全部缓存
func (a *Accessor) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = snapshot[model.Settings]{}
	a.capture = snapshot[model.CaptureState]{}
}

func (a *Accessor) fresh(fetchedAt time.Time) bool {
	if fetchedAt.IsZero() {
		return false
	}
	return a.now().Sub(fetchedAt) < a.ttl
}
