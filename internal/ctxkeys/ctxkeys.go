package ctxkeys

// TraceIDKey 请求链路 ID 的 context key
type TraceIDKey struct{}
