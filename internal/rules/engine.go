package rules

import (
	"regexp"
	"strings"

	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Engine 请求过滤判定器。判定顺序固定：
// 拒绝列表 → 允许列表 → 资源类型 → 流媒体分片策略 → 内容过滤，
// 前序阶段的拒绝不可被后序阶段推翻。
type Engine struct {
	log   logger.Logger
	cache *compiledCache
}

func New(l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{log: l, cache: newCompiledCache()}
}

// Accept 判定 URL 是否应被记录。纯判定，不产生副作用，任何输入都不会失败。
func (e *Engine) Accept(url, resourceType string, s model.Settings) bool {
	if e.matchAnyPattern(url, s.DenyList) {
		return false
	}
	if len(s.AllowList) > 0 && !e.matchAnyPattern(url, s.AllowList) {
		return false
	}
	if len(s.ResourceTypes) > 0 && !containsType(s.ResourceTypes, resourceType) {
		return false
	}
	if s.HlsMpdMode == model.HlsMpdPlaylistOnly && IsSegmentURL(url) && !IsPlaylistURL(url) {
		return false
	}
	return e.matchContentFilters(url, s)
}

// matchContentFilters 两类过滤器都为空时全部通过；否则任一命中即通过。
// 非法正则跳过该条而不是否决整次判定。
func (e *Engine) matchContentFilters(url string, s model.Settings) bool {
	if len(s.SimpleFilters) == 0 && len(s.RegexFilters) == 0 {
		return true
	}
	for _, f := range s.SimpleFilters {
		if f != "" && strings.Contains(url, f) {
			return true
		}
	}
	for _, p := range s.RegexFilters {
		if p == "" {
			continue
		}
		re, err := e.cache.Get("(?i)" + p)
		if err != nil {
			e.log.Warn("跳过非法正则过滤器", "pattern", p, "error", err.Error())
			continue
		}
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// matchAnyPattern 列表中任一模式命中即为真。
// 含 * 的模式按通配符匹配（* 展开为任意字符），
// 展开失败的非法模式退化为普通子串包含。
func (e *Engine) matchAnyPattern(url string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if e.matchPattern(url, p) {
			return true
		}
	}
	return false
}

func (e *Engine) matchPattern(url, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(url, pattern)
	}
	re, err := e.cache.Get(wildcardToRegex(pattern))
	if err != nil {
		return strings.Contains(url, pattern)
	}
	return re.MatchString(url)
}

// wildcardToRegex 将通配符模式转为正则，* 以外的字符全部按字面处理
func wildcardToRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, ".*")
}

func containsType(types []string, t string) bool {
	for _, v := range types {
		if strings.EqualFold(v, t) {
			return true
		}
	}
	return false
}
