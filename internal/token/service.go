// Package token implements the session token lifecycle: issuance, rotation
// with replay detection, revocation, and stateless validation of access
// credentials.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"authcore/internal/audit"
	"authcore/internal/policy/engine"
	"authcore/internal/security"
	"authcore/internal/session/domain"
	"authcore/internal/session/repository"
	"authcore/internal/telemetry"
	otelemitter "authcore/internal/telemetry/otel"
)

var (
	// ErrInvalidCredential is returned when a presented refresh credential
	// matches no stored record.
	ErrInvalidCredential = errors.New("invalid refresh credential")

	// ErrExpiredCredential is returned when a credential (refresh or access)
	// is past its validity window.
	ErrExpiredCredential = errors.New("expired credential")

	// ErrSessionRevoked is returned when the credential's session family has
	// been revoked, or the principal can no longer hold sessions.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrCredentialReuseDetected is returned when an already-consumed refresh
	// credential is presented again. The family (or, per policy, every family
	// of the principal) has been revoked by the time this is returned.
	ErrCredentialReuseDetected = errors.New("credential reuse detected")

	// ErrMalformedCredential is returned by Validate for access credentials
	// that fail parsing or signature checks.
	ErrMalformedCredential = errors.New("malformed credential")
)

// Principal is the token service's view of an account: just enough to decide
// whether it may hold sessions and what claims its tokens carry.
type Principal struct {
	ID     string
	Roles  []string
	Active bool
}

// PrincipalLookup resolves a principal by id. Implementations return
// (nil, nil) when the principal does not exist.
type PrincipalLookup interface {
	ByID(ctx context.Context, id string) (*Principal, error)
}

// Pair is one issued credential pair. RefreshCredential is the only copy of
// the cleartext; the service stores its hash and cannot reproduce it.
type Pair struct {
	AccessToken       string
	AccessExpiresAt   time.Time
	RefreshCredential string
	RefreshExpiresAt  time.Time
	FamilyID          string
	Sequence          int64
}

// Service drives the refresh-rotation state machine over the session store.
// All mutating decisions are delegated to the store's conditional update so
// concurrent rotations of the same credential resolve to exactly one winner.
type Service struct {
	store      repository.Store
	codec      *security.Codec
	lookup     PrincipalLookup
	policy     engine.Evaluator
	auditLog   audit.AuditLogger
	emitter    telemetry.EventEmitter
	refreshTTL time.Duration
	now        func() time.Time

	sessionsIssued metric.Int64Counter
	rotations      metric.Int64Counter
	reuseDetected  metric.Int64Counter
}

// NewService wires the token service. auditLog and emitter may be nil;
// policy may be nil, in which case the built-in defaults apply (revoke the
// family on reuse, revoke defensively on expiry).
func NewService(
	store repository.Store,
	codec *security.Codec,
	lookup PrincipalLookup,
	policy engine.Evaluator,
	auditLog audit.AuditLogger,
	emitter telemetry.EventEmitter,
	refreshTTL time.Duration,
) *Service {
	meter := otel.Meter("authcore.token")
	sessionsIssued, err := meter.Int64Counter("authcore.sessions.issued")
	if err != nil {
		log.Printf("token: create sessions counter: %v", err)
	}
	rotations, err := meter.Int64Counter("authcore.rotations")
	if err != nil {
		log.Printf("token: create rotations counter: %v", err)
	}
	reuseDetected, err := meter.Int64Counter("authcore.reuse.detected")
	if err != nil {
		log.Printf("token: create reuse counter: %v", err)
	}
	return &Service{
		store:          store,
		codec:          codec,
		lookup:         lookup,
		policy:         policy,
		auditLog:       auditLog,
		emitter:        emitter,
		refreshTTL:     refreshTTL,
		now:            func() time.Time { return time.Now().UTC() },
		sessionsIssued: sessionsIssued,
		rotations:      rotations,
		reuseDetected:  reuseDetected,
	}
}

// SetClock overrides the service clock. For tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IssueNewSession creates a fresh session family for the principal and
// returns its first credential pair (sequence 0).
func (s *Service) IssueNewSession(ctx context.Context, p *Principal) (*Pair, error) {
	now := s.now()
	family := &domain.Family{
		ID:          uuid.New().String(),
		PrincipalID: p.ID,
		CreatedAt:   now,
	}
	if err := s.store.CreateFamily(ctx, family); err != nil {
		return nil, err
	}

	cleartext, err := security.GenerateRefreshCredential()
	if err != nil {
		return nil, err
	}
	record := &domain.RefreshRecord{
		ID:             uuid.New().String(),
		FamilyID:       family.ID,
		Sequence:       0,
		CredentialHash: security.HashRefreshCredential(cleartext),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.refreshTTL),
	}
	if err := s.store.InsertRefreshRecord(ctx, record); err != nil {
		return nil, err
	}

	access, accessExp, err := s.codec.IssueAccess(p.ID, family.ID, p.Roles, now)
	if err != nil {
		return nil, err
	}
	s.addCount(ctx, s.sessionsIssued, 1)
	return &Pair{
		AccessToken:       access,
		AccessExpiresAt:   accessExp,
		RefreshCredential: cleartext,
		RefreshExpiresAt:  record.ExpiresAt,
		FamilyID:          family.ID,
		Sequence:          0,
	}, nil
}

// Rotate exchanges a refresh credential for a new pair. The presented
// credential is consumed exactly once; every anomaly revokes and fails:
//
//   - unknown hash: ErrInvalidCredential
//   - revoked family or record: ErrSessionRevoked
//   - already consumed, or lost the race to a concurrent rotation: the
//     family (or principal, per policy) is revoked and
//     ErrCredentialReuseDetected is returned
//   - expired: the family is defensively revoked (per policy) and
//     ErrExpiredCredential is returned
//   - principal gone or inactive: the family is revoked and
//     ErrSessionRevoked is returned
func (s *Service) Rotate(ctx context.Context, refreshCredential string) (*Pair, error) {
	now := s.now()
	hash := security.HashRefreshCredential(refreshCredential)

	record, err := s.store.LookupByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.countRotation(ctx, "invalid")
		return nil, ErrInvalidCredential
	}

	family, err := s.store.GetFamily(ctx, record.FamilyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		s.countRotation(ctx, "invalid")
		return nil, ErrInvalidCredential
	}
	if family.Revoked() || record.Revoked() {
		s.countRotation(ctx, "revoked")
		return nil, ErrSessionRevoked
	}

	if record.Consumed() {
		return nil, s.handleReuse(ctx, family, record, now)
	}

	if record.Expired(now) {
		return nil, s.handleExpired(ctx, family, record, now)
	}

	cleartext, err := security.GenerateRefreshCredential()
	if err != nil {
		return nil, err
	}
	successor := &domain.RefreshRecord{
		ID:             uuid.New().String(),
		FamilyID:       family.ID,
		Sequence:       record.Sequence + 1,
		CredentialHash: security.HashRefreshCredential(cleartext),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.refreshTTL),
	}
	if err := s.store.ConsumeAndAdvance(ctx, record.ID, successor, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumedOrRevoked) {
			// A concurrent rotation or revocation won between our read and the
			// conditional update. Indistinguishable from replay; same handling.
			return nil, s.handleReuse(ctx, family, record, now)
		}
		return nil, err
	}

	principal, err := s.lookup.ByID(ctx, family.PrincipalID)
	if err != nil {
		return nil, err
	}
	if principal == nil || !principal.Active {
		if err := s.store.RevokeFamily(ctx, family.ID, now); err != nil {
			return nil, err
		}
		s.logAudit(ctx, family.PrincipalID, audit.ActionFamilyRevoked, family.ID, "principal inactive")
		s.countRotation(ctx, "revoked")
		return nil, ErrSessionRevoked
	}

	access, accessExp, err := s.codec.IssueAccess(principal.ID, family.ID, principal.Roles, now)
	if err != nil {
		return nil, err
	}
	s.countRotation(ctx, "ok")
	return &Pair{
		AccessToken:       access,
		AccessExpiresAt:   accessExp,
		RefreshCredential: cleartext,
		RefreshExpiresAt:  successor.ExpiresAt,
		FamilyID:          family.ID,
		Sequence:          successor.Sequence,
	}, nil
}

// Logout revokes the session family that the presented refresh credential
// belongs to. Idempotent for already-revoked families; unknown credentials
// return ErrInvalidCredential.
func (s *Service) Logout(ctx context.Context, refreshCredential string) error {
	record, err := s.store.LookupByHash(ctx, security.HashRefreshCredential(refreshCredential))
	if err != nil {
		return err
	}
	if record == nil {
		return ErrInvalidCredential
	}
	now := s.now()
	if err := s.store.RevokeFamily(ctx, record.FamilyID, now); err != nil {
		return err
	}
	family, err := s.store.GetFamily(ctx, record.FamilyID)
	if err == nil && family != nil {
		s.logAudit(ctx, family.PrincipalID, audit.ActionLogout, family.ID, "")
	}
	return nil
}

// LogoutAll revokes every session family of the principal. Idempotent.
func (s *Service) LogoutAll(ctx context.Context, principalID string) error {
	if err := s.store.RevokeAllFamiliesForPrincipal(ctx, principalID, s.now()); err != nil {
		return err
	}
	s.logAudit(ctx, principalID, audit.ActionLogoutAll, principalID, "")
	return nil
}

// Validate verifies an access credential without touching storage. Revoked
// sessions therefore keep their access credentials valid until expiry; the
// short access TTL bounds that window.
func (s *Service) Validate(tokenString string) (*security.AccessClaims, error) {
	claims, err := s.codec.VerifyAccess(tokenString)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrMalformedCredential
	}
	return claims, nil
}

// handleReuse runs the reuse-detection response: consult policy for the
// revocation scope, revoke, and record the security event.
func (s *Service) handleReuse(ctx context.Context, family *domain.Family, record *domain.RefreshRecord, now time.Time) error {
	scope := engine.RevokeScopeFamily
	if s.policy != nil {
		result, err := s.policy.EvaluateSessionSecurity(ctx, engine.SessionPolicyInput{
			PrincipalID: family.PrincipalID,
			FamilyID:    family.ID,
			Sequence:    record.Sequence,
			Event:       "reuse",
		})
		if err != nil {
			log.Printf("token: reuse policy evaluation failed, revoking family: %v", err)
		} else {
			scope = result.ReuseRevokeScope
		}
	}

	var revokeErr error
	if scope == engine.RevokeScopePrincipal {
		revokeErr = s.store.RevokeAllFamiliesForPrincipal(ctx, family.PrincipalID, now)
	} else {
		revokeErr = s.store.RevokeFamily(ctx, family.ID, now)
	}
	if revokeErr != nil {
		return revokeErr
	}

	s.addCount(ctx, s.reuseDetected, 1)
	s.countRotation(ctx, "reuse")
	s.logAudit(ctx, family.PrincipalID, audit.ActionReuseDetected, family.ID,
		fmt.Sprintf("sequence=%d scope=%s", record.Sequence, scope))
	otelemitter.EmitAsync(s.emitter, &telemetry.SecurityEvent{
		EventType:   audit.ActionReuseDetected,
		PrincipalID: family.PrincipalID,
		FamilyID:    family.ID,
		Sequence:    record.Sequence,
		Scope:       scope,
		Detail:      "consumed refresh credential presented again",
		OccurredAt:  now,
	})
	return ErrCredentialReuseDetected
}

// handleExpired applies the expiry response: defensively revoke the family
// unless policy says otherwise.
func (s *Service) handleExpired(ctx context.Context, family *domain.Family, record *domain.RefreshRecord, now time.Time) error {
	revoke := true
	if s.policy != nil {
		result, err := s.policy.EvaluateSessionSecurity(ctx, engine.SessionPolicyInput{
			PrincipalID: family.PrincipalID,
			FamilyID:    family.ID,
			Sequence:    record.Sequence,
			Event:       "expired",
		})
		if err != nil {
			log.Printf("token: expiry policy evaluation failed, revoking family: %v", err)
		} else {
			revoke = result.RevokeOnExpired
		}
	}
	if revoke {
		if err := s.store.RevokeFamily(ctx, family.ID, now); err != nil {
			return err
		}
		s.logAudit(ctx, family.PrincipalID, audit.ActionExpiredRevoked, family.ID,
			fmt.Sprintf("sequence=%d", record.Sequence))
	}
	s.countRotation(ctx, "expired")
	return ErrExpiredCredential
}

func (s *Service) logAudit(ctx context.Context, principalID, action, resource, metadata string) {
	if s.auditLog != nil {
		s.auditLog.LogEvent(ctx, principalID, action, resource, metadata)
	}
}

func (s *Service) countRotation(ctx context.Context, result string) {
	if s.rotations != nil {
		s.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func (s *Service) addCount(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil {
		c.Add(ctx, n)
	}
}
