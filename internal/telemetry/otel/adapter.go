package otel

import (
	"context"
	"log"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authcore/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends security events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("authcore.security")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the security event to an OTel log record and emits it.
// Best-effort; errors are logged by callers.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.OccurredAt.IsZero() {
		rec.SetTimestamp(event.OccurredAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityWarn)
	if event.Detail != "" {
		rec.SetBody(otellog.StringValue(event.Detail))
	}
	if event.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", event.EventType))
	}
	if event.PrincipalID != "" {
		rec.AddAttributes(otellog.String("principal_id", event.PrincipalID))
	}
	if event.FamilyID != "" {
		rec.AddAttributes(otellog.String("family_id", event.FamilyID))
	}
	if event.Scope != "" {
		rec.AddAttributes(otellog.String("scope", event.Scope))
	}
	rec.AddAttributes(otellog.Int64("sequence", event.Sequence))
	e.logger.Emit(ctx, rec)
	return nil
}

// EmitAsync runs Emit in a goroutine with a short timeout so the request is
// not blocked. Logs errors.
func EmitAsync(emitter telemetry.EventEmitter, event *telemetry.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
