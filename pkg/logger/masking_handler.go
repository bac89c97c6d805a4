package logger

import (
	"context"
	"log/slog"
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"dsn",
	"bot_token",
}

const (
	maskedValue       = "***"
	correlationIDAttr = "correlation_id"
)

// MaskingHandler wraps a slog.Handler and masks sensitive attributes before delegating.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// WithAttrs masks attributes bound with Logger.With as well.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	hasID := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == correlationIDAttr {
			hasID = true
		}
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	if id := CorrelationIDFromContext(ctx); id != "" && !hasID {
		masked.AddAttrs(slog.String(correlationIDAttr, id))
	}

	return h.next.Handle(ctx, masked)
}

func maskAttr(attr slog.Attr) slog.Attr {
	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, maskedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		masked := make([]any, len(group))
		for i, a := range group {
			masked[i] = maskAttr(a)
		}
		return slog.Group(attr.Key, masked...)
	}
	return attr
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if key == sensitive || strings.HasSuffix(key, "_"+sensitive) {
			return true
		}
	}
	return false
}
