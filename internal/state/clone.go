package state

import "github.com/cuzic/webreq-sniffer-sub000/pkg/model"

// 逐类型的显式拷贝函数，保证缓存值不会被调用方原地修改

func cloneSettings(s model.Settings) model.Settings {
	out := s
	out.DenyList = cloneStrings(s.DenyList)
	out.AllowList = cloneStrings(s.AllowList)
	out.ResourceTypes = cloneStrings(s.ResourceTypes)
	out.SimpleFilters = cloneStrings(s.SimpleFilters)
	out.RegexFilters = cloneStrings(s.RegexFilters)
	return out
}

func cloneCaptureState(cs model.CaptureState) model.CaptureState {
	out := cs
	out.Entries = CloneEntries(cs.Entries)
	return out
}

// CloneEntries 返回日志序列的独立副本
func CloneEntries(entries []model.LogEntry) []model.LogEntry {
	if entries == nil {
		return []model.LogEntry{}
	}
	out := make([]model.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = CloneEntry(e)
	}
	return out
}

// CloneEntry 返回单条日志的独立副本
func CloneEntry(e model.LogEntry) model.LogEntry {
	out := e
	out.Headers = e.Headers.Clone()
	if e.PageMetadata != nil {
		meta := *e.PageMetadata
		out.PageMetadata = &meta
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
