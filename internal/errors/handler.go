package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/tapcoin-engine/pkg/logger"
)

const genericUserMessage = "Something went wrong. Please try again later"

// Handler turns errors into user-facing messages, logging them and reporting
// severe ones to Sentry.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []slog.Attr{
			slog.String("code", appErr.Code),
			slog.String("kind", string(appErr.Kind)),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		level := slog.LevelWarn
		if appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "application error", attrs...)

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = genericUserMessage
		}

		return userMessage, appErr.Retryable
	}

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)

	if h.sentryEnabled {
		h.sendToSentry(err)
	}

	return genericUserMessage, false
}

func (h *Handler) sendToSentry(err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Kind != "" {
				scope.SetTag("kind", string(appErr.Kind))
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
