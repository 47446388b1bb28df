package model

// CaptureScope 捕获范围
type CaptureScope string

const (
	// ScopeActiveTab 仅捕获指定标签页的请求
	ScopeActiveTab CaptureScope = "active-tab"
	// ScopeAllTabs 捕获全部标签页的请求
	ScopeAllTabs CaptureScope = "all-tabs"
)

// HlsMpdMode 流媒体分片策略
type HlsMpdMode string

const (
	// HlsMpdAll 记录所有流媒体请求
	HlsMpdAll HlsMpdMode = "all"
	// HlsMpdPlaylistOnly 仅记录播放列表/清单，丢弃媒体分片
	HlsMpdPlaylistOnly HlsMpdMode = "playlist-only"
)

// NoTabID 表示事件不属于任何标签页
const NoTabID = -1

// Settings 用户过滤配置。allow/type/filter 类别的空列表表示“该类别不限制”。
type Settings struct {
	DenyList      []string   `json:"denyList"`
	AllowList     []string   `json:"allowList"`
	ResourceTypes []string   `json:"resourceTypes"`
	HlsMpdMode    HlsMpdMode `json:"hlsMpdMode"`
	SimpleFilters []string   `json:"simpleFilters"`
	RegexFilters  []string   `json:"regexFilters"`
	MaxEntries    int        `json:"maxEntries"`
}

// SettingsPatch 配置的部分更新，nil 字段保持原值
type SettingsPatch struct {
	DenyList      *[]string   `json:"denyList,omitempty"`
	AllowList     *[]string   `json:"allowList,omitempty"`
	ResourceTypes *[]string   `json:"resourceTypes,omitempty"`
	HlsMpdMode    *HlsMpdMode `json:"hlsMpdMode,omitempty"`
	SimpleFilters *[]string   `json:"simpleFilters,omitempty"`
	RegexFilters  *[]string   `json:"regexFilters,omitempty"`
	MaxEntries    *int        `json:"maxEntries,omitempty"`
}

// DefaultSettings 安装时的初始配置
func DefaultSettings() Settings {
	return Settings{
		DenyList:      []string{},
		AllowList:     []string{},
		ResourceTypes: []string{},
		HlsMpdMode:    HlsMpdAll,
		SimpleFilters: []string{},
		RegexFilters:  []string{},
		MaxEntries:    1000,
	}
}

// CaptureState 捕获状态与已提交的日志序列
type CaptureState struct {
	IsCapturing bool         `json:"isCapturing"`
	Scope       CaptureScope `json:"scope"`
	ActiveTabID int          `json:"activeTabId"`
	Entries     []LogEntry   `json:"entries"`
}

// CapturePatch 捕获状态的部分更新
type CapturePatch struct {
	IsCapturing *bool         `json:"isCapturing,omitempty"`
	Scope       *CaptureScope `json:"scope,omitempty"`
	ActiveTabID *int          `json:"activeTabId,omitempty"`
	Entries     *[]LogEntry   `json:"entries,omitempty"`
}

// DefaultCaptureState 安装时的初始捕获状态
func DefaultCaptureState() CaptureState {
	return CaptureState{
		IsCapturing: false,
		Scope:       ScopeAllTabs,
		ActiveTabID: NoTabID,
		Entries:     []LogEntry{},
	}
}

// RawRequestEvent 事件源推送的原始请求事件，只读输入，消费一次
type RawRequestEvent struct {
	RequestID string `json:"requestId"`
	URL       string `json:"url"`
	Method    string `json:"method"`
	Type      string `json:"type"`
	TabID     int    `json:"tabId"`
	FrameID   int    `json:"frameId"`
	TimeStamp int64  `json:"timeStamp"`
	Initiator string `json:"initiator,omitempty"`
}

// PageMetadata 附加在事件上的可选页面元数据
type PageMetadata struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// LogEntry 已提交的日志条目，提交后归有界日志所有
type LogEntry struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"requestId"`
	URL          string        `json:"url"`
	Method       string        `json:"method"`
	Type         string        `json:"type"`
	TabID        int           `json:"tabId"`
	FrameID      int           `json:"frameId"`
	TimeStamp    int64         `json:"timeStamp"`
	Initiator    string        `json:"initiator,omitempty"`
	Headers      Header        `json:"headers,omitempty"`
	DedupeKey    string        `json:"dedupeKey"`
	PageMetadata *PageMetadata `json:"pageMetadata,omitempty"`
}

// Status 控制协议返回的状态快照
type Status struct {
	IsCapturing bool         `json:"isCapturing"`
	Scope       CaptureScope `json:"scope"`
	ActiveTabID int          `json:"activeTabId"`
	EntryCount  int          `json:"entryCount"`
	Entries     []LogEntry   `json:"entries"`
	Stats       Stats        `json:"stats"`
}

// Stats 管道的聚合计数
type Stats struct {
	Processed  int64 `json:"processed"`
	Committed  int64 `json:"committed"`
	Duplicates int64 `json:"duplicates"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
}
