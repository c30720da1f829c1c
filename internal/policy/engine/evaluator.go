package engine

import "context"

// RevokeScope names how far a credential-reuse revocation reaches.
const (
	// RevokeScopeFamily revokes only the session family whose credential was
	// replayed. Other devices of the same principal stay logged in.
	RevokeScopeFamily = "family"
	// RevokeScopePrincipal revokes every session family of the principal.
	RevokeScopePrincipal = "principal"
)

// SessionPolicyInput is the fact base for a session-security decision.
type SessionPolicyInput struct {
	PrincipalID string
	FamilyID    string
	Sequence    int64
	// Event is "reuse" or "expired".
	Event string
}

// SessionPolicyResult is the outcome of evaluating the session-security
// policy for one rotation event.
type SessionPolicyResult struct {
	// ReuseRevokeScope is RevokeScopeFamily or RevokeScopePrincipal.
	ReuseRevokeScope string
	// RevokeOnExpired controls whether presenting an expired refresh
	// credential defensively revokes its family.
	RevokeOnExpired bool
}

// Evaluator decides session-security behavior for rotation edge cases.
type Evaluator interface {
	EvaluateSessionSecurity(ctx context.Context, input SessionPolicyInput) (SessionPolicyResult, error)
}
