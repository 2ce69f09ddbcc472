package decoder

import (
	"context"
	"log/slog"
)

// ProgressNotifier receives bulk-decode progress.
type ProgressNotifier interface {
	NotifyProgress(ctx context.Context, processed, total int) error
}

// LogNotifier reports progress through the logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "decode_progress")}
}

func (n *LogNotifier) NotifyProgress(_ context.Context, processed, total int) error {
	n.logger.Info("decoding zksync lite transactions", "processed", processed, "total", total)
	return nil
}
