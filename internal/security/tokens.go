package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token cannot be parsed, carries a
	// bad signature, or fails issuer/audience checks.
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpiredToken is returned when a structurally valid token is past its
	// expiry. Kept distinct from ErrMalformedToken so callers can tell a stale
	// client from a broken or forged one.
	ErrExpiredToken = errors.New("expired token")
)

// AccessClaims holds the claims embedded in an access credential. The subject
// is the principal id; FamilyID ties the credential back to the session family
// that minted it.
type AccessClaims struct {
	jwt.RegisteredClaims
	FamilyID string   `json:"family_id"`
	Roles    []string `json:"roles,omitempty"`
}

// Codec signs and verifies access credentials using RS256 or ES256. It is
// stateless: verification never touches storage, so a revoked session's
// access credentials stay valid until they expire.
type Codec struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
}

// NewCodec returns a Codec that signs with the given private key. The signing
// method follows the key type; issuer and audience are stamped on every token
// and checked on verification.
func NewCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *Codec {
	return &Codec{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}
}

// AccessTTL returns the configured access-credential lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess issues a short-lived access credential for the principal within
// the given session family. Returns the signed token and its expiry.
func (c *Codec) IssueAccess(principalID, familyID string, roles []string, now time.Time) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now = now.UTC()
	expiresAt = now.Add(c.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   principalID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		FamilyID: familyID,
		Roles:    roles,
	}
	token, err = c.sign(claims)
	return token, expiresAt, err
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch c.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrMalformedToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(c.privateKey)
}

// VerifyAccess parses and validates an access credential (signature, exp,
// iss, aud) and returns its claims. Expired tokens return ErrExpiredToken;
// every other failure returns ErrMalformedToken.
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return c.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return c.publicKey, nil
		}
		return nil, ErrMalformedToken
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Issuer != c.issuer {
		return nil, ErrMalformedToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == c.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
