package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport records notifications in the log instead of sending them.
// Every token counts as delivered.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a transport writing to logger.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) MulticastSend(_ context.Context, tokens []string, data map[string]string) (Result, error) {
	t.logger.Info("push (log transport)",
		zap.Int("tokens", len(tokens)),
		zap.Any("data", data),
	)
	return Result{SuccessCount: len(tokens)}, nil
}
