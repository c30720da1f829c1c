package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyPackagePath = "data.authcore.session_security"

// Default Rego policy. Reuse of a consumed refresh credential revokes the
// affected family only; expired credentials trigger defensive family
// revocation. Operators can override via config with a policy in the same
// package.
const defaultRegoPolicy = `package authcore.session_security

default reuse_revoke_scope = "family"
default revoke_on_expired = true
`

// OPAEvaluator evaluates the session-security policy with the in-process OPA
// Rego engine. The policy is compiled once at construction.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles policySource and returns an evaluator. An empty
// policySource selects the built-in default policy.
func NewOPAEvaluator(policySource string) (*OPAEvaluator, error) {
	if policySource == "" {
		policySource = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"session_security.rego": policySource})
	if err != nil {
		return nil, fmt.Errorf("compile session policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EvaluateSessionSecurity(ctx, SessionPolicyInput{Event: "reuse"})
	return err
}

// EvaluateSessionSecurity evaluates the policy for one rotation event. On
// evaluation failure it logs and returns the conservative defaults.
func (e *OPAEvaluator) EvaluateSessionSecurity(ctx context.Context, input SessionPolicyInput) (SessionPolicyResult, error) {
	out := SessionPolicyResult{
		ReuseRevokeScope: RevokeScopeFamily,
		RevokeOnExpired:  true,
	}

	regoInput := map[string]interface{}{
		"principal_id": input.PrincipalID,
		"family_id":    input.FamilyID,
		"sequence":     input.Sequence,
		"event":        input.Event,
	}

	scopeRS, err := rego.New(
		rego.Query(policyPackagePath+".reuse_revoke_scope"),
		rego.Compiler(e.compiler),
		rego.Input(regoInput),
	).Eval(ctx)
	if err != nil {
		log.Printf("policy: reuse_revoke_scope evaluation failed: %v, using defaults", err)
		return out, nil
	}
	if len(scopeRS) > 0 && len(scopeRS[0].Expressions) > 0 {
		if v, ok := scopeRS[0].Expressions[0].Value.(string); ok {
			if v == RevokeScopeFamily || v == RevokeScopePrincipal {
				out.ReuseRevokeScope = v
			}
		}
	}

	expiredRS, err := rego.New(
		rego.Query(policyPackagePath+".revoke_on_expired"),
		rego.Compiler(e.compiler),
		rego.Input(regoInput),
	).Eval(ctx)
	if err != nil {
		log.Printf("policy: revoke_on_expired evaluation failed: %v, using defaults", err)
		return out, nil
	}
	if len(expiredRS) > 0 && len(expiredRS[0].Expressions) > 0 {
		if v, ok := expiredRS[0].Expressions[0].Value.(bool); ok {
			out.RevokeOnExpired = v
		}
	}

	return out, nil
}
