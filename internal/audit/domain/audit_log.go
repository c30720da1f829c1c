package domain

import "time"

// AuditLog represents one audit event. PrincipalID may be empty for events
// that could not be attributed (e.g. refresh with an unknown credential).
type AuditLog struct {
	ID          string
	PrincipalID string
	Action      string
	Resource    string
	IP          string
	Metadata    string
	CreatedAt   time.Time
}
