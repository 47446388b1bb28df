package api

import (
	"context"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/pipeline"
	"github.com/cuzic/webreq-sniffer-sub000/internal/service"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Service 服务接口
type Service interface {
	// StartCapture 开启捕获
	StartCapture(ctx context.Context, scope model.CaptureScope, activeTabID int) error

	// StopCapture 停止捕获
	StopCapture(ctx context.Context) error

	// Status 获取状态快照
	Status(ctx context.Context) (model.Status, error)

	// ClearLog 清空日志
	ClearLog(ctx context.Context) error

	// GetLog 读取已提交的日志序列
	GetLog(ctx context.Context) ([]model.LogEntry, error)

	// GetSettings 读取配置
	GetSettings(ctx context.Context) (model.Settings, error)

	// UpdateSettings 部分更新配置
	UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error)
}

// NewService 创建并返回服务接口实现
func NewService(acc *state.Accessor, chain *pipeline.Chain, journal *pipeline.Journal, l logger.Logger) Service {
	return service.New(acc, chain, journal, l)
}
