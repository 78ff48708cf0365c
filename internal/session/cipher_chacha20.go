package session

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// newChaCha20AEAD builds an XChaCha20-Poly1305 AEAD. The extended nonce
// space makes random nonces safe for long-lived cookie directories.
func newChaCha20AEAD(key []byte) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 instance: %w", err)
	}
	return aead, nil
}
