package chain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var ErrSealedKeyCorrupt = errors.New("sealed key cannot be opened")

// Keystore seals wallet private keys with AES-256-GCM under a master key. The wallet
// address is bound as additional data so a sealed key cannot be moved to another wallet.
type Keystore struct {
	aead cipher.AEAD
}

// NewKeystore builds a keystore from a 64 character hex master key
func NewKeystore(masterKeyHex string) (*Keystore, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	defer zero(key)
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid master key length: must be 32 bytes for AES-256, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Keystore{aead: aead}, nil
}

// Seal encrypts a private key; the nonce is prepended to the ciphertext
func (k *Keystore) Seal(address string, privateKey []byte) ([]byte, error) {
	if len(privateKey) == 0 {
		return nil, errors.New("private key cannot be empty")
	}
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, privateKey, []byte(address)), nil
}

// WithKey opens a sealed key, passes it to fn and wipes it once fn returns.
// fn must not retain the slice.
func (k *Keystore) WithKey(address string, sealed []byte, fn func(privateKey []byte) error) error {
	nonceSize := k.aead.NonceSize()
	if len(sealed) < nonceSize {
		return ErrSealedKeyCorrupt
	}
	privateKey, err := k.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(address))
	if err != nil {
		return ErrSealedKeyCorrupt
	}
	defer zero(privateKey)
	return fn(privateKey)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
