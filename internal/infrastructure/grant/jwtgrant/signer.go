package jwtgrant

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidHandle = errors.New("invalid retrieval handle")
	ErrHandleExpired = errors.New("retrieval handle expired")
)

type grantClaims struct {
	StagedPath string `json:"sp"`
	jwt.RegisteredClaims
}

// Signer issues short-lived signed retrieval handles for staged
// plaintext. A handle binds one document to one staged path and stops
// verifying at its exp claim whether or not it was ever used.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("grant secret must be at least 32 bytes")
	}
	return &Signer{secret: secret, now: time.Now}, nil
}

func (s *Signer) Issue(documentID, stagedPath string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims := grantClaims{
		StagedPath: stagedPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   documentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	handle, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign retrieval handle: %w", err)
	}
	return handle, expiresAt, nil
}

func (s *Signer) Verify(handle string) (string, string, error) {
	claims := &grantClaims{}
	token, err := jwt.ParseWithClaims(handle, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrHandleExpired
		}
		return "", "", fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}
	if !token.Valid || claims.Subject == "" || claims.StagedPath == "" {
		return "", "", ErrInvalidHandle
	}
	return claims.Subject, claims.StagedPath, nil
}
