package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_Defaults(t *testing.T) {
	e, err := NewOPAEvaluator("")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	res, err := e.EvaluateSessionSecurity(context.Background(), SessionPolicyInput{
		PrincipalID: "p1", FamilyID: "f1", Sequence: 3, Event: "reuse",
	})
	if err != nil {
		t.Fatalf("EvaluateSessionSecurity: %v", err)
	}
	if res.ReuseRevokeScope != RevokeScopeFamily {
		t.Errorf("scope: want %q, got %q", RevokeScopeFamily, res.ReuseRevokeScope)
	}
	if !res.RevokeOnExpired {
		t.Error("revoke_on_expired: want true")
	}
}

func TestOPAEvaluator_OverridePolicy(t *testing.T) {
	policy := `package authcore.session_security

default reuse_revoke_scope = "family"
default revoke_on_expired = false

reuse_revoke_scope = "principal" if {
	input.event == "reuse"
	input.sequence > 5
}
`
	e, err := NewOPAEvaluator(policy)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}

	res, err := e.EvaluateSessionSecurity(context.Background(), SessionPolicyInput{Event: "reuse", Sequence: 10})
	if err != nil {
		t.Fatalf("EvaluateSessionSecurity: %v", err)
	}
	if res.ReuseRevokeScope != RevokeScopePrincipal {
		t.Errorf("scope for high sequence: want %q, got %q", RevokeScopePrincipal, res.ReuseRevokeScope)
	}
	if res.RevokeOnExpired {
		t.Error("revoke_on_expired override: want false")
	}

	res, err = e.EvaluateSessionSecurity(context.Background(), SessionPolicyInput{Event: "reuse", Sequence: 1})
	if err != nil {
		t.Fatalf("EvaluateSessionSecurity: %v", err)
	}
	if res.ReuseRevokeScope != RevokeScopeFamily {
		t.Errorf("scope for low sequence: want %q, got %q", RevokeScopeFamily, res.ReuseRevokeScope)
	}
}

func TestNewOPAEvaluator_BadPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator("package broken {{{"); err == nil {
		t.Error("want compile error for broken policy")
	}
}
