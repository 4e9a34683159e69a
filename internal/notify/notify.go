package notify

import (
	"context"
	"log/slog"
)

// Sink delivers fire-and-forget user notifications ("liked you", "it's a
// match", "new message"). Delivery failure must never propagate into the
// calling operation; implementations log and move on.
type Sink interface {
	Notify(ctx context.Context, recipientID uint64, title, body string, payload map[string]string)
}

// LogSink is the default Sink: it records the notification on the logger.
// A push-gateway implementation plugs in behind the same interface.
type LogSink struct {
	Logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, recipientID uint64, title, body string, payload map[string]string) {
	s.Logger.Info("notification",
		"recipient", recipientID,
		"title", title,
		"body", body,
		"payload", payload,
	)
}
