package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// refreshEntropyBytes is the size of a generated refresh credential before
// encoding. 32 bytes keeps the credential unguessable even against an
// attacker holding the full hash column.
const refreshEntropyBytes = 32

// GenerateRefreshCredential returns a new opaque refresh credential as a
// base64url string. The credential carries no structure; the server can
// interpret it only by hashing it and looking the hash up in storage.
func GenerateRefreshCredential() (string, error) {
	b := make([]byte, refreshEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshCredential returns the hex-encoded SHA-256 hash of the refresh
// credential. Only this hash is ever stored or used for lookup.
func HashRefreshCredential(credential string) string {
	h := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(h[:])
}

// RefreshHashEqual performs a constant-time comparison of the presented
// credential's hash with the stored hash.
func RefreshHashEqual(presented, storedHash string) bool {
	presentedHash := HashRefreshCredential(presented)
	return subtle.ConstantTimeCompare([]byte(presentedHash), []byte(storedHash)) == 1
}
