package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/rpcc"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/pipeline"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Source 基于 Chrome DevTools 协议的请求事件源。
// 附加到每个页面目标，订阅请求阶段的拦截事件，转换后推入处理链。
// 只观察不改写：每个事件处理完毕后原样放行。
type Source struct {
	devtoolsURL string
	chain       *pipeline.Chain
	conv        *Converter
	log         logger.Logger

	mu      sync.Mutex
	targets map[string]*targetSession
	nextTab int
}

// targetSession 单个页面目标的连接与消费状态
type targetSession struct {
	id     string
	tabID  int
	meta   model.PageMetadata
	ctx    context.Context
	cancel context.CancelFunc
	conn   *rpcc.Conn
	client *cdp.Client
}

func NewSource(devtoolsURL string, chain *pipeline.Chain, l logger.Logger) *Source {
	if l == nil {
		l = logger.NewNop()
	}
	return &Source{
		devtoolsURL: devtoolsURL,
		chain:       chain,
		conv:        NewConverter(),
		log:         l,
		targets:     make(map[string]*targetSession),
	}
}

// Start 列出所有页面目标并逐个附加
func (s *Source) Start(ctx context.Context) error {
	dt := devtool.New(s.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return fmt.Errorf("列出调试目标失败: %w", err)
	}

	attached := 0
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if err := s.attach(ctx, t); err != nil {
			s.log.Warn("附加目标失败", "target", string(t.ID), "error", err.Error())
			continue
		}
		attached++
	}
	if attached == 0 {
		return fmt.Errorf("没有可附加的页面目标: %s", s.devtoolsURL)
	}
	s.log.Info("事件源已启动", "targets", attached)
	return nil
}

func (s *Source) attach(ctx context.Context, t *devtool.Target) error {
	tctx, cancel := context.WithCancel(ctx)
	conn, err := rpcc.DialContext(tctx, t.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return err
	}

	ts := &targetSession{
		id:     string(t.ID),
		meta:   model.PageMetadata{Title: t.Title, URL: t.URL},
		ctx:    tctx,
		cancel: cancel,
		conn:   conn,
		client: cdp.NewClient(conn),
	}

	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
	}
	if err := ts.client.Fetch.Enable(tctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		cancel()
		conn.Close()
		return err
	}

	s.mu.Lock()
	ts.tabID = s.nextTab
	s.nextTab++
	s.targets[ts.id] = ts
	s.mu.Unlock()

	go s.consume(ts)
	s.log.Info("已附加目标", "target", ts.id, "tabId", ts.tabID, "url", t.URL)
	return nil
}

// consume 持续接收拦截事件并逐个分发处理
func (s *Source) consume(ts *targetSession) {
	rp, err := ts.client.Fetch.RequestPaused(ts.ctx)
	if err != nil {
		s.log.Err(err, "订阅拦截事件流失败", "target", ts.id)
		s.removeTarget(ts)
		return
	}
	defer rp.Close()

	for {
		ev, err := rp.Recv()
		if err != nil {
			if ts.ctx.Err() == nil {
				s.log.Warn("拦截流被中断，移除目标", "target", ts.id, "error", err.Error())
			}
			s.removeTarget(ts)
			return
		}
		go s.handle(ts, ev)
	}
}

// handle 处理单个拦截事件：送入处理链后原样放行
func (s *Source) handle(ts *targetSession, ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(ts.ctx, 3*time.Second)
	defer cancel()

	raw, headers := s.conv.ToRawEvent(ts.tabID, ev)
	meta := ts.meta
	outcome := s.chain.Process(ctx, raw, headers, &meta)
	s.log.Debug("事件处理完成", "outcome", string(outcome), "url", raw.URL, "tabId", ts.tabID)

	if err := ts.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID}); err != nil {
		if ts.ctx.Err() == nil {
			s.log.Warn("放行请求失败", "requestId", string(ev.RequestID), "error", err.Error())
		}
	}
}

func (s *Source) removeTarget(ts *targetSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.targets[ts.id]; ok && cur == ts {
		cur.cancel()
		cur.conn.Close()
		delete(s.targets, ts.id)
	}
}

// Stop 断开全部目标连接
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.targets {
		ts.cancel()
		ts.conn.Close()
		delete(s.targets, id)
	}
	s.log.Info("事件源已停止")
}
