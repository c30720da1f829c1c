package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("correct horse"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("correct horse")); err != nil {
		t.Errorf("Compare matching password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Error("Compare wrong password: want error, got nil")
	}
}

func TestNewHasher_CostClamped(t *testing.T) {
	if h := NewHasher(0); h.Cost != bcrypt.DefaultCost {
		t.Errorf("cost 0: want default %d, got %d", bcrypt.DefaultCost, h.Cost)
	}
	if h := NewHasher(100); h.Cost != bcrypt.MaxCost {
		t.Errorf("cost 100: want max %d, got %d", bcrypt.MaxCost, h.Cost)
	}
}
