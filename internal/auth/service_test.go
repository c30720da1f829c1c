package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"authcore/internal/security"
	"authcore/internal/session/repository"
	"authcore/internal/token"
)

// fakeVerifier accepts a single fixed username/password pair.
type fakeVerifier struct {
	username  string
	password  string
	principal *token.Principal
	err       error
}

func (f *fakeVerifier) Verify(ctx context.Context, username, password string) (*token.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if username == f.username && password == f.password {
		cp := *f.principal
		return &cp, nil
	}
	return nil, nil
}

type fixedLookup struct {
	principal *token.Principal
}

func (f *fixedLookup) ByID(ctx context.Context, id string) (*token.Principal, error) {
	if f.principal != nil && f.principal.ID == id {
		cp := *f.principal
		return &cp, nil
	}
	return nil, nil
}

func newAuthService(t *testing.T) *Service {
	t.Helper()
	codec, err := security.NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	p := &token.Principal{ID: "p1", Roles: []string{"user"}, Active: true}
	tokens := token.NewService(repository.NewMemoryStore(), codec, &fixedLookup{principal: p}, nil, nil, nil, 24*time.Hour)
	verifier := &fakeVerifier{username: "alice", password: "s3cret", principal: p}
	return NewService(verifier, tokens, nil)
}

func TestService_LoginSuccess(t *testing.T) {
	svc := newAuthService(t)
	pair, err := svc.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshCredential == "" {
		t.Fatal("empty credentials in pair")
	}
	if pair.Sequence != 0 {
		t.Errorf("login sequence: want 0, got %d", pair.Sequence)
	}
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestService_LoginUnknownUser(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Login(context.Background(), "mallory", "s3cret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestService_LoginVerifierFailure(t *testing.T) {
	svc := newAuthService(t)
	svc.verifier = &fakeVerifier{err: errors.New("directory down")}
	_, err := svc.Login(context.Background(), "alice", "s3cret")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("want transient error, got %v", err)
	}
}

func TestService_RefreshFlow(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	next, err := svc.Refresh(ctx, pair.RefreshCredential)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.Sequence != pair.Sequence+1 {
		t.Errorf("sequence: want %d, got %d", pair.Sequence+1, next.Sequence)
	}

	// Replay of the consumed credential surfaces the token service's error.
	if _, err := svc.Refresh(ctx, pair.RefreshCredential); !errors.Is(err, token.ErrCredentialReuseDetected) {
		t.Errorf("replay: want ErrCredentialReuseDetected, got %v", err)
	}
}

func TestService_LogoutFlow(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	pair, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, pair.RefreshCredential); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshCredential); !errors.Is(err, token.ErrSessionRevoked) {
		t.Errorf("refresh after logout: want ErrSessionRevoked, got %v", err)
	}
}

func TestService_LogoutAllFlow(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	a, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login A: %v", err)
	}
	b, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login B: %v", err)
	}
	if err := svc.LogoutAll(ctx, "p1"); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	for _, cred := range []string{a.RefreshCredential, b.RefreshCredential} {
		if _, err := svc.Refresh(ctx, cred); !errors.Is(err, token.ErrSessionRevoked) {
			t.Errorf("refresh after LogoutAll: want ErrSessionRevoked, got %v", err)
		}
	}
}
