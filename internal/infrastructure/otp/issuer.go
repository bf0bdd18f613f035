package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// Issuer generates fixed-width numeric one-time pickup codes. Codes gate
// redemption, so they come from crypto/rand and cover the full
// 000000-999999 space uniformly.
type Issuer struct {
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{ttl: ttl, now: time.Now}
}

// Issue returns a zero-padded 6-digit code and its absolute expiry.
func (i *Issuer) Issue() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("draw code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), i.now().UTC().Add(i.ttl), nil
}

// Verify checks candidate against code in constant time and requires the
// code to still be live. Digits only, no partial matches.
func (i *Issuer) Verify(code string, expiresAt, now time.Time, candidate string) bool {
	if now.After(expiresAt) {
		return false
	}
	if len(code) != CodeLength || len(candidate) != CodeLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) == 1
}
