package identity

import (
	"strconv"

	"github.com/cuzic/webreq-sniffer-sub000/pkg/model"
)

// Compute 根据 URL 与 Referer/Origin 头派生去重键。
// 确定性的 32 位滚动散列，base36 编码；缺失的头按空串参与计算。
func Compute(url string, headers model.Header) string {
	material := url + "|" + headers.Get("Referer") + "|" + headers.Get("Origin")
	var h uint32 = 5381
	for i := 0; i < len(material); i++ {
		h = h*33 + uint32(material[i])
	}
	return strconv.FormatUint(uint64(h), 36)
}
