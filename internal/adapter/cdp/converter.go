package cdp

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp/protocol/fetch"

	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Converter 将 CDP 拦截事件转换为中立的原始请求事件。
// CDP 的 frame ID 是字符串，按首次出现顺序映射为稳定的小整数。
type Converter struct {
	mu     sync.Mutex
	frames map[string]int
}

func NewConverter() *Converter {
	return &Converter{frames: make(map[string]int)}
}

// ToRawEvent 转换单个拦截事件，返回事件本体与归一化后的请求头
func (c *Converter) ToRawEvent(tabID int, ev *fetch.RequestPausedReply) (model.RawRequestEvent, map[string]string) {
	headers := map[string]string{}
	if len(ev.Request.Headers) > 0 {
		if err := json.Unmarshal(ev.Request.Headers, &headers); err == nil {
			normalized := make(map[string]string, len(headers))
			for k, v := range headers {
				normalized[strings.ToLower(k)] = v
			}
			headers = normalized
		}
	}

	raw := model.RawRequestEvent{
		RequestID: string(ev.RequestID),
		URL:       ev.Request.URL,
		Method:    ev.Request.Method,
		Type:      string(ev.ResourceType),
		TabID:     tabID,
		FrameID:   c.frameIndex(string(ev.FrameID)),
		TimeStamp: time.Now().UnixMilli(),
		Initiator: headers["origin"],
	}
	return raw, headers
}

func (c *Converter) frameIndex(frameID string) int {
	if frameID == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.frames[frameID]; ok {
		return idx
	}
	idx := len(c.frames)
	c.frames[frameID] = idx
	return idx
}
