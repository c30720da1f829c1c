package telemetry

import (
	"context"
	"time"
)

// SecurityEvent describes a security-relevant session event (reuse detection,
// revocation, defensive expiry revocation).
type SecurityEvent struct {
	EventType   string
	PrincipalID string
	FamilyID    string
	Sequence    int64
	Scope       string
	Detail      string
	OccurredAt  time.Time
}

// EventEmitter emits security events (e.g. to OTel Logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}
