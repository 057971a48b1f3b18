package auth

import (
	"context"

	"go.uber.org/zap"
)

// SMSSender delivers one-time codes
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSMSSender writes messages to the log instead of a carrier.
// Used in development and tests.
type LogSMSSender struct {
	logger *zap.Logger
}

// NewLogSMSSender creates a log-backed sender
func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

// Send logs the message
func (s *LogSMSSender) Send(_ context.Context, phone, message string) error {
	s.logger.Info("SMS sent", zap.String("phone", phone), zap.String("message", message))
	return nil
}
