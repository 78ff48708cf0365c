// Package session persists extractor login cookies encrypted at rest, so
// repeat validations of the same account can reuse an established web
// session instead of re-authenticating through a fresh proxy.
package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// Algorithm selects the AEAD used for cookie files.
type Algorithm string

const (
	CHACHA20_POLY1305 Algorithm = "chacha20"
	AES_256_GCM       Algorithm = "aes-gcm"
)

type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds the default (chacha20) cipher for a passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	return NewCipherWithAlgo(passphrase, CHACHA20_POLY1305)
}

// NewCipherWithAlgo derives a 256-bit key from the passphrase and wraps the
// chosen AEAD. Both algorithms share the same derivation so files stay
// readable across a configured algorithm switchback.
func NewCipherWithAlgo(passphrase string, algo Algorithm) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("session: empty passphrase")
	}
	hash := sha256.Sum256([]byte(passphrase))
	key := hash[:]

	var aead cipher.AEAD
	var err error

	switch algo {
	case AES_256_GCM:
		aead, err = newAESGCMAEAD(key)
	case CHACHA20_POLY1305:
		fallthrough
	default:
		aead, err = newChaCha20AEAD(key)
	}
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce, nonce prefixed to the
// returned ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext is too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
