package security

import "testing"

func TestParseKeys_EmbeddedPair(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if signer == nil || pub == nil {
		t.Fatal("nil key")
	}
	if alg := KeyAlg(pub); alg != "RS256" {
		t.Errorf("KeyAlg: want RS256, got %q", alg)
	}
}

func TestParseKeys_Invalid(t *testing.T) {
	if _, err := ParsePrivateKey("not pem"); err == nil {
		t.Error("ParsePrivateKey garbage: want error")
	}
	if _, err := ParsePublicKey(""); err != ErrInvalidKey {
		t.Errorf("ParsePublicKey empty: want ErrInvalidKey, got %v", err)
	}
}
