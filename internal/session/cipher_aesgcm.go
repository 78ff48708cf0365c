package session

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// newAESGCMAEAD builds an AES-256-GCM AEAD, kept for directories written by
// deployments that standardize on AES.
func newAESGCMAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES-GCM instance: %w", err)
	}
	return aead, nil
}
