package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	printerIDKey ctxKey = "printer_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// WithPrinter tags the context with the polling printer's hardware address so
// every log line of a poll/confirm cycle carries it.
func WithPrinter(ctx context.Context, mac string) context.Context {
	return context.WithValue(ctx, printerIDKey, mac)
}

func PrinterFrom(ctx context.Context) string {
	if v := ctx.Value(printerIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// FromCtx returns logger with request_id and printer_id automatically added
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if mac := PrinterFrom(ctx); mac != "" {
		l = l.With(zap.String("printer_id", mac))
	}
	return l
}
