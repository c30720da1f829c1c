package server

import "context"

// Identity is the authenticated caller extracted from a verified access
// credential.
type Identity struct {
	PrincipalID string
	FamilyID    string
	Roles       []string
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

const clientIPKey contextKey = "client_ip"

// IPFromContext returns the client IP recorded by the router, or "unknown".
// Shaped to serve as an audit.IPExtractor.
func IPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}
