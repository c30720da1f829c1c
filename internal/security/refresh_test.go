package security

import "testing"

func TestGenerateRefreshCredential_Unique(t *testing.T) {
	a, err := GenerateRefreshCredential()
	if err != nil {
		t.Fatalf("GenerateRefreshCredential: %v", err)
	}
	b, err := GenerateRefreshCredential()
	if err != nil {
		t.Fatalf("GenerateRefreshCredential: %v", err)
	}
	if a == "" || b == "" {
		t.Fatal("credential empty")
	}
	if a == b {
		t.Fatal("two generated credentials are identical")
	}
}

func TestHashRefreshCredential_Deterministic(t *testing.T) {
	h1 := HashRefreshCredential("abc")
	h2 := HashRefreshCredential("abc")
	if h1 != h2 {
		t.Errorf("same input hashed differently: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length: want 64 hex chars, got %d", len(h1))
	}
	if h1 == HashRefreshCredential("abd") {
		t.Error("different inputs produced the same hash")
	}
}

func TestRefreshHashEqual(t *testing.T) {
	cred, err := GenerateRefreshCredential()
	if err != nil {
		t.Fatalf("GenerateRefreshCredential: %v", err)
	}
	stored := HashRefreshCredential(cred)
	if !RefreshHashEqual(cred, stored) {
		t.Error("matching credential did not compare equal")
	}
	if RefreshHashEqual("other", stored) {
		t.Error("non-matching credential compared equal")
	}
}
