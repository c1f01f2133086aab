package meter

import (
	"log/slog"

	"github.com/ineyio/speechgate"
)

// LogMeter logs dispatch events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ speechgate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnRoute(e speechgate.RouteEvent) {
	m.Logger.Info("route",
		"request_id", e.RequestID,
		"backend", e.Backend.String(),
		"engine", e.Engine,
		"processed_seconds", e.ProcessedSeconds,
		"exhausted", e.Exhausted,
	)
}

func (m *LogMeter) OnResult(e speechgate.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"request_id", e.RequestID,
			"backend", e.Backend.String(),
			"engine", e.Engine,
			"matched", e.Matched,
			"duration_ms", e.Duration.Milliseconds(),
		)
	} else {
		m.Logger.Warn("result_error",
			"request_id", e.RequestID,
			"backend", e.Backend.String(),
			"engine", e.Engine,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
	}
}

func (m *LogMeter) OnCharge(e speechgate.ChargeEvent) {
	switch {
	case e.Dropped:
		m.Logger.Warn("charge_dropped",
			"request_id", e.RequestID,
			"seconds", e.Seconds,
			"error", e.Error,
		)
	case e.Error != nil:
		m.Logger.Error("charge_error",
			"request_id", e.RequestID,
			"seconds", e.Seconds,
			"total_seconds", e.Total,
			"error", e.Error,
		)
	default:
		m.Logger.Info("charge",
			"request_id", e.RequestID,
			"seconds", e.Seconds,
			"total_seconds", e.Total,
			"rolled", e.Rolled,
		)
	}
}
