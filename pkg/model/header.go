package model

import "strings"

// Header 封装通用的头部操作，键统一存为小写
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 返回独立副本，nil 原样返回
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// NewHeader 从任意大小写的键值对构建 Header
func NewHeader(m map[string]string) Header {
	h := make(Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
