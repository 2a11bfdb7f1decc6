// Package telemetry carries best-effort request events to Kafka and OTel Logs.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"daily-trivia/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down OTel providers,
// so in-flight async telemetry emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from request handlers for fire-and-forget, best-effort telemetry; errors are logged.
//
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine detaches from ctx so request cancellation does not abort an in-flight emit.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.Event, logger *zap.Logger) {
	if emitter == nil || event == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			logger.Warn("telemetry: async emit failed", zap.String("event_type", event.EventType), zap.Error(err))
		}
	}()
}
