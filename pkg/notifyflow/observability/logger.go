// Package observability provides structured logging, metrics, and tracing
// for the notifyflow dispatch core.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every Log helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds dispatch context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "tenant-1", "order.payment_settled")
//	enriched.Info("routing") // includes tenant_id and kind
func EnrichLogger(logger *slog.Logger, tenantID, kind string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("tenant_id", tenantID),
		slog.String("kind", kind),
	)
}

// LogDispatchSkipped logs a dispatch that ended without deliveries by policy.
func LogDispatchSkipped(logger *slog.Logger, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch skipped",
		slog.String("reason", reason),
	)
}

// LogRoutingViolation logs a routing policy violation (missing or empty targets).
func LogRoutingViolation(logger *slog.Logger, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("dispatch aborted",
		slog.String("reason", reason),
	)
}

// LogConfigurationError logs a configuration bug detected at dispatch time.
func LogConfigurationError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("dispatch configuration error",
		slog.String("error", err.Error()),
	)
}

// LogDispatchComplete logs a finished fan-out.
func LogDispatchComplete(logger *slog.Logger, targets, delivered, failed int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("dispatch completed",
		slog.Int("targets", targets),
		slog.Int("delivered", delivered),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerFailure logs a failed delivery. Sibling deliveries continue.
func LogHandlerFailure(logger *slog.Logger, channel, target string, err error) {
	if logger == nil {
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	logger.Error("delivery failed",
		slog.String("channel", channel),
		slog.String("target", target),
		slog.String("error", msg),
	)
}

// LogHandlerSuccess logs a successful delivery.
func LogHandlerSuccess(logger *slog.Logger, channel, target string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("delivery succeeded",
		slog.String("channel", channel),
		slog.String("target", target),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSideEffectFailure logs a best-effort bookkeeping failure (non-fatal).
func LogSideEffectFailure(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("side effect failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogTransition logs the outcome of a tenant status observation.
func LogTransition(logger *slog.Logger, tenantID, from, to, outcome string) {
	if logger == nil {
		return
	}
	logger.Info("tenant status observed",
		slog.String("tenant_id", tenantID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("outcome", outcome),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
