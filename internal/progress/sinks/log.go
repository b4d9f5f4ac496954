package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where a metrics backend is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. Failure
// events log at warn so a grep of the run log surfaces them.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("ticker", evt.Ticker),
			zap.String("stage", string(evt.Stage)),
			zap.String("class", string(evt.Class)),
			zap.String("detail", evt.Detail),
			zap.Time("at", evt.At),
		}
		if evt.Class == progress.ClassFailure {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
