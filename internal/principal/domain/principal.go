package domain

import "time"

// Principal status values.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Principal is an account that can authenticate and hold sessions.
type Principal struct {
	ID           string
	Username     string
	PasswordHash string
	Status       string
	Roles        []string
	CreatedAt    time.Time
}

// Active reports whether the principal may authenticate and rotate sessions.
func (p *Principal) Active() bool {
	return p != nil && p.Status == StatusActive
}
