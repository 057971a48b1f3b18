package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRequestID
	keyUserID
)

// WithContext attaches l to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, l)
}

// FromContext returns the attached logger or a no-op one
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(keyLogger).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request ID and attaches a logger tagged with it
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return tag(ctx, l, keyRequestID, "request_id", requestID)
}

// WithUserID records the signed-in user and attaches a logger tagged with it
func WithUserID(ctx context.Context, l *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return tag(ctx, l, keyUserID, "user_id", userID)
}

func tag(ctx context.Context, l *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	tagged := l.With(zap.String(field, value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, tagged), tagged
}

func GetRequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

func GetUserID(ctx context.Context) string { return stringValue(ctx, keyUserID) }

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetTraceID returns the active span's trace ID, or ""
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// L returns the context logger, tagged with trace_id and span_id while a
// span is active.
//
//	logger.L(ctx).Info("order stored", zap.String("order_id", id))
func L(ctx context.Context) *zap.Logger {
	return Or(ctx, zap.NewNop())
}

// Or is L with a fallback for contexts that carry no logger
func Or(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	l := fallback
	if attached, ok := ctx.Value(keyLogger).(*zap.Logger); ok {
		l = attached
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
	}
	return l
}
