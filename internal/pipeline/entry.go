package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cuzic/webreq-sniffer-sub000/internal/identity"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// NewEntry 由原始事件构建日志条目，分配唯一 ID 与去重键。
// 必填字段缺失说明上游违反了事件契约，直接返回错误而不是静默丢弃。
func NewEntry(ev model.RawRequestEvent, headers map[string]string, meta *model.PageMetadata) (model.LogEntry, error) {
	if ev.RequestID == "" {
		return model.LogEntry{}, fmt.Errorf("原始事件缺少 requestId: url=%s", ev.URL)
	}
	if ev.URL == "" {
		return model.LogEntry{}, fmt.Errorf("原始事件缺少 url: requestId=%s", ev.RequestID)
	}
	if ev.Method == "" {
		return model.LogEntry{}, fmt.Errorf("原始事件缺少 method: requestId=%s", ev.RequestID)
	}

	var h model.Header
	if len(headers) > 0 {
		h = model.NewHeader(headers)
	}

	entry := model.LogEntry{
		ID:        uuid.NewString(),
		RequestID: ev.RequestID,
		URL:       ev.URL,
		Method:    ev.Method,
		Type:      ev.Type,
		TabID:     ev.TabID,
		FrameID:   ev.FrameID,
		TimeStamp: ev.TimeStamp,
		Initiator: ev.Initiator,
		Headers:   h,
		DedupeKey: identity.Compute(ev.URL, h),
	}
	if meta != nil {
		m := *meta
		entry.PageMetadata = &m
	}
	return entry, nil
}
