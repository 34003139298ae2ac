// Package crypto provides AES-256-GCM encryption for message bodies at rest.
// Ciphertext is stored base64-encoded with the random nonce prepended, so a
// single opaque string column carries everything needed to decrypt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt marks ciphertext that cannot be decrypted: corrupt data, a
// truncated record, or a key rotation mismatch. Read paths match on it with
// errors.Is and skip the record instead of failing the listing.
var ErrDecrypt = errors.New("message decryption failed")

// MessageEncryptor encrypts and decrypts chat message bodies with a
// pre-shared 32-byte key held server-side.
type MessageEncryptor struct {
	aead cipher.AEAD
}

// NewMessageEncryptor creates a MessageEncryptor from a 32-byte AES-256 key.
func NewMessageEncryptor(key []byte) (*MessageEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("message encryptor: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("message encryptor: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("message encryptor: create GCM: %w", err)
	}

	return &MessageEncryptor{aead: aead}, nil
}

// Encrypt encrypts the plaintext and returns base64(nonce + ciphertext).
func (e *MessageEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("message encrypt: generate nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decodes the base64 ciphertext, extracts the prepended nonce, and
// decrypts. All failure modes wrap ErrDecrypt.
func (e *MessageEncryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrDecrypt, err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
