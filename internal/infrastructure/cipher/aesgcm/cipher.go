package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/printpoint/handoff/internal/core/domain"
)

const KeySize = 32

var ErrInvalidKeyLength = errors.New("key must be 32 bytes")

// Cipher seals and opens per-document payloads with AES-256-GCM. The
// sealed layout is nonce || ciphertext || tag, so a payload carries
// everything needed to open it given the document's key.
type Cipher struct{}

func New() *Cipher {
	return &Cipher{}
}

// GenerateKey returns a fresh random 256-bit key. One key per document;
// keys are never derived from document content or the pickup code.
func (c *Cipher) GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random nonce. The nonce
// is always drawn here; reusing one under the same key breaks GCM, so no
// caller-supplied nonce is accepted.
func (c *Cipher) Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a sealed payload. Any tampering,
// truncation, or wrong key yields domain.ErrIntegrity before a single
// plaintext byte is released.
func (c *Cipher) Open(sealed, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, domain.WrapError(domain.ErrIntegrity, "open sealed payload", errors.New("payload too short"))
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIntegrity, "open sealed payload", err)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return aead, nil
}
