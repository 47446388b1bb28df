package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/pipeline"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// ErrInvalidArgument 调用方参数不合法，区别于存储等内部故障
var ErrInvalidArgument = errors.New("参数不合法")

// Service 控制协议操作的实现
type Service struct {
	acc     *state.Accessor
	chain   *pipeline.Chain
	journal *pipeline.Journal
	log     logger.Logger
}

// New 创建服务实现
func New(acc *state.Accessor, chain *pipeline.Chain, journal *pipeline.Journal, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{acc: acc, chain: chain, journal: journal, log: l}
}

// StartCapture 开启捕获。scope 为 active-tab 时必须给出 activeTabID。
func (s *Service) StartCapture(ctx context.Context, scope model.CaptureScope, activeTabID int) error {
	switch scope {
	case model.ScopeAllTabs:
		activeTabID = model.NoTabID
	case model.ScopeActiveTab:
		if activeTabID < 0 {
			return fmt.Errorf("active-tab 范围必须指定 activeTabId: %w", ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("未知的捕获范围 %q: %w", scope, ErrInvalidArgument)
	}

	on := true
	_, err := s.acc.UpdateCaptureState(ctx, model.CapturePatch{
		IsCapturing: &on,
		Scope:       &scope,
		ActiveTabID: &activeTabID,
	})
	if err != nil {
		return err
	}
	s.log.Info("捕获已开启", "scope", string(scope), "activeTabId", activeTabID)
	return nil
}

// StopCapture 停止捕获，已提交的日志保留
func (s *Service) StopCapture(ctx context.Context) error {
	off := false
	if _, err := s.acc.UpdateCaptureState(ctx, model.CapturePatch{IsCapturing: &off}); err != nil {
		return err
	}
	s.log.Info("捕获已停止")
	return nil
}

// Status 返回当前状态快照
func (s *Service) Status(ctx context.Context) (model.Status, error) {
	cs, err := s.acc.GetCaptureState(ctx, false)
	if err != nil {
		return model.Status{}, err
	}
	return model.Status{
		IsCapturing: cs.IsCapturing,
		Scope:       cs.Scope,
		ActiveTabID: cs.ActiveTabID,
		EntryCount:  len(cs.Entries),
		Entries:     cs.Entries,
		Stats:       s.chain.Stats(),
	}, nil
}

// ClearLog 清空日志
func (s *Service) ClearLog(ctx context.Context) error {
	if err := s.journal.Clear(ctx); err != nil {
		return err
	}
	s.log.Info("日志已清空")
	return nil
}

// GetLog 读取已提交的日志序列
func (s *Service) GetLog(ctx context.Context) ([]model.LogEntry, error) {
	cs, err := s.acc.GetCaptureState(ctx, false)
	if err != nil {
		return nil, err
	}
	return cs.Entries, nil
}

// GetSettings 读取当前配置
func (s *Service) GetSettings(ctx context.Context) (model.Settings, error) {
	return s.acc.GetSettings(ctx, false)
}

// UpdateSettings 部分更新配置并返回更新后的完整配置
func (s *Service) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	return s.acc.UpdateSettings(ctx, patch)
}
