// Package vault seals knowledge snapshots at rest with a key derived from an
// operator passphrase.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrSealed is returned by Open when the blob was not produced by the same
// passphrase or has been tampered with.
var ErrSealed = errors.New("cannot open sealed data")

// Vault is an AES-256-GCM sealer.
type Vault struct {
	aead cipher.AEAD
}

// New derives the key with Argon2id. The salt is a hash of the passphrase
// so every process of a swarm derives the same key.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("create vault: empty passphrase")
	}
	salt := sha256.Sum256([]byte("kinema:" + passphrase))
	key := argon2.IDKey([]byte(passphrase), salt[:16], 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh nonce and prepends the nonce.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *Vault) Open(sealed []byte) ([]byte, error) {
	n := v.aead.NonceSize()
	if len(sealed) < n+v.aead.Overhead() {
		return nil, fmt.Errorf("open: %w: too short", ErrSealed)
	}
	plaintext, err := v.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", ErrSealed)
	}
	return plaintext, nil
}
