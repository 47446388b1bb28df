package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Outcome 单次链执行的终态
type Outcome string

const (
	// OutcomeCommitted 条目已写入日志
	OutcomeCommitted Outcome = "committed"
	// OutcomeDuplicate 条目与已有日志重复，按空操作结束
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeDroppedDisabled 捕获未开启
	OutcomeDroppedDisabled Outcome = "dropped:capture-disabled"
	// OutcomeDroppedTabMismatch 事件不属于当前捕获的标签页
	OutcomeDroppedTabMismatch Outcome = "dropped:tab-mismatch"
	// OutcomeDroppedFiltered 条件判定未通过
	OutcomeDroppedFiltered Outcome = "dropped:filtered"
	// OutcomeFailed 某阶段内部错误，事件被放弃
	OutcomeFailed Outcome = "failed"
)

// Evaluator 条件判定接口，rules.Engine 为生产实现
type Evaluator interface {
	Accept(url, resourceType string, s model.Settings) bool
}

// Chain 事件处理链。每个事件依次经过
// 捕获开关检查 → 条件判定 → 提交，任一阶段可提前终止。
// 阶段内的错误只影响当前事件，不向事件源传播，也不污染后续事件。
type Chain struct {
	acc     *state.Accessor
	eval    Evaluator
	journal *Journal
	log     logger.Logger

	processed  atomic.Int64
	committed  atomic.Int64
	duplicates atomic.Int64
	dropped    atomic.Int64
	failed     atomic.Int64
}

func NewChain(acc *state.Accessor, eval Evaluator, journal *Journal, l logger.Logger) *Chain {
	if l == nil {
		l = logger.NewNop()
	}
	return &Chain{acc: acc, eval: eval, journal: journal, log: l}
}

// procState 在各阶段之间传递的执行状态
type procState struct {
	ev       model.RawRequestEvent
	headers  map[string]string
	meta     *model.PageMetadata
	settings model.Settings
}

// stage 处理链阶段：terminal 为真时 outcome 即为终态
type stage struct {
	name string
	run  func(ctx context.Context, st *procState) (outcome Outcome, terminal bool, err error)
}

// Process 将一个原始事件送入处理链并返回终态
func (c *Chain) Process(ctx context.Context, ev model.RawRequestEvent, headers map[string]string, meta *model.PageMetadata) (out Outcome) {
	c.processed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("管道阶段panic，丢弃事件", "panic", fmt.Sprint(r), "url", ev.URL, "requestId", ev.RequestID)
			c.failed.Add(1)
			out = OutcomeFailed
		}
	}()

	st := &procState{ev: ev, headers: headers, meta: meta}
	stages := []stage{
		{name: "check-capture-enabled", run: c.stageCaptureEnabled},
		{name: "evaluate-criteria", run: c.stageEvaluate},
		{name: "commit", run: c.stageCommit},
	}

	for _, s := range stages {
		outcome, terminal, err := s.run(ctx, st)
		if err != nil {
			c.log.Err(err, "管道阶段失败，丢弃事件", "stage", s.name, "url", ev.URL, "requestId", ev.RequestID)
			c.failed.Add(1)
			return OutcomeFailed
		}
		if terminal {
			c.count(outcome)
			return outcome
		}
	}

	// 最后一个阶段必为终态，正常不可达
	c.failed.Add(1)
	return OutcomeFailed
}

func (c *Chain) stageCaptureEnabled(ctx context.Context, st *procState) (Outcome, bool, error) {
	cs, err := c.acc.GetCaptureState(ctx, false)
	if err != nil {
		return "", false, err
	}
	if !cs.IsCapturing {
		return OutcomeDroppedDisabled, true, nil
	}
	if cs.Scope == model.ScopeActiveTab {
		if st.ev.TabID < 0 || st.ev.TabID != cs.ActiveTabID {
			return OutcomeDroppedTabMismatch, true, nil
		}
	}
	return "", false, nil
}

func (c *Chain) stageEvaluate(ctx context.Context, st *procState) (Outcome, bool, error) {
	s, err := c.acc.GetSettings(ctx, false)
	if err != nil {
		return "", false, err
	}
	st.settings = s
	if !c.eval.Accept(st.ev.URL, st.ev.Type, s) {
		return OutcomeDroppedFiltered, true, nil
	}
	return "", false, nil
}

func (c *Chain) stageCommit(ctx context.Context, st *procState) (Outcome, bool, error) {
	entry, err := NewEntry(st.ev, st.headers, st.meta)
	if err != nil {
		return "", false, err
	}
	res, err := c.journal.Commit(ctx, entry, st.settings.MaxEntries)
	if err != nil {
		return "", false, err
	}
	if res == CommitDuplicate {
		return OutcomeDuplicate, true, nil
	}
	return OutcomeCommitted, true, nil
}

func (c *Chain) count(out Outcome) {
	switch out {
	case OutcomeCommitted:
		c.committed.Add(1)
	case OutcomeDuplicate:
		c.duplicates.Add(1)
	default:
		c.dropped.Add(1)
	}
}

// Stats 返回聚合计数快照
func (c *Chain) Stats() model.Stats {
	return model.Stats{
		Processed:  c.processed.Load(),
		Committed:  c.committed.Load(),
		Duplicates: c.duplicates.Load(),
		Dropped:    c.dropped.Load(),
		Failed:     c.failed.Load(),
	}
}
