package rules

import "regexp"

// 固定的流媒体 URL 启发式规则表。
// 播放列表判定优先于分片判定：命中播放列表的 URL 不会被分片策略丢弃。

var segmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(ts|m4s|m4f|cmfv|cmfa)(\?|#|$)`),
	regexp.MustCompile(`(?i)(^|[/._-])(seg|segment|chunk|frag|fragment)[-_]?\d+`),
	regexp.MustCompile(`(?i)/(media|video|audio)[-_]?\d+\.`),
}

var playlistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(m3u8|mpd)(\?|#|$)`),
	regexp.MustCompile(`(?i)(^|[/._-])(playlist|manifest|master)([/._-]|$)`),
}

// IsSegmentURL 判定 URL 是否形似媒体分片
func IsSegmentURL(url string) bool {
	for _, re := range segmentPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// IsPlaylistURL 判定 URL 是否形似播放列表/清单
func IsPlaylistURL(url string) bool {
	for _, re := range playlistPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
