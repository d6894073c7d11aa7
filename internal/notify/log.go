package notify

import (
	"context"
	"log/slog"

	"github.com/roach88/vaultsync/internal/secret"
)

// Log reports failures through a logger. The local backend uses it in place
// of SNS.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a notifier writing to logger.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs one record listing every failed identifier.
func (n *Log) Notify(ctx context.Context, prefix string, errs []secret.ItemError) error {
	msg, err := Message("local", "local", errs)
	if err != nil {
		return err
	}
	n.logger.LogAttrs(ctx, slog.LevelError, Subject(prefix),
		slog.String("prefix", prefix),
		slog.Int("failed", len(errs)),
		slog.String("notification", msg),
	)
	return nil
}
