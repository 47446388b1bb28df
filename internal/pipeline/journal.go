package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// CommitResult 提交结果
type CommitResult string

const (
	// CommitAppended 条目已追加进日志
	CommitAppended CommitResult = "appended"
	// CommitDuplicate 去重键已存在，提交为定义内的空操作
	CommitDuplicate CommitResult = "duplicate"
)

// Journal 有界日志。提交时去重（先写者胜），超过容量从队首逐出。
type Journal struct {
	acc *state.Accessor
	log logger.Logger

	mu sync.Mutex
}

func NewJournal(acc *state.Accessor, l logger.Logger) *Journal {
	if l == nil {
		l = logger.NewNop()
	}
	return &Journal{acc: acc, log: l}
}

// Commit 提交一条日志。
// 读-去重-追加-逐出-写回全程持锁：并发提交若交错执行，会基于同一份
// 追加前的序列各自写回，后写者静默抹掉先写者的条目。
// 持锁之外仍强制刷新读取，保证追加基于存储中的权威序列而非过期缓存。
func (j *Journal) Commit(ctx context.Context, entry model.LogEntry, maxEntries int) (CommitResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cs, err := j.acc.GetCaptureState(ctx, true)
	if err != nil {
		return "", fmt.Errorf("读取当前日志失败: %w", err)
	}

	for i := range cs.Entries {
		if cs.Entries[i].DedupeKey == entry.DedupeKey {
			j.log.Debug("重复条目，跳过提交", "dedupeKey", entry.DedupeKey, "url", entry.URL)
			return CommitDuplicate, nil
		}
	}

	entries := append(cs.Entries, entry)
	if evicted := len(entries) - maxEntries; evicted > 0 {
		if maxEntries <= 0 {
			entries = []model.LogEntry{}
		} else {
			entries = entries[evicted:]
		}
		j.log.Debug("日志超限，从队首逐出", "evicted", evicted, "maxEntries", maxEntries)
	}

	if _, err := j.acc.UpdateCaptureState(ctx, model.CapturePatch{Entries: &entries}); err != nil {
		return "", fmt.Errorf("写入日志失败: %w", err)
	}
	return CommitAppended, nil
}

// Clear 清空全部日志条目
func (j *Journal) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	empty := []model.LogEntry{}
	if _, err := j.acc.UpdateCaptureState(ctx, model.CapturePatch{Entries: &empty}); err != nil {
		return fmt.Errorf("清空日志失败: %w", err)
	}
	return nil
}
