package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrDecrypt is returned when a ciphertext cannot be opened, typically
// because it was sealed under a different key or has been tampered with.
var ErrDecrypt = errors.New("decrypt failed")

// FieldCipher provides AES-256-GCM encryption of string values.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher creates a FieldCipher with the given 32-byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("field cipher: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field cipher: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field cipher: create GCM: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// NewFieldCipherFromHex decodes a 64-character hex key and creates a cipher.
func NewFieldCipherFromHex(key string) (*FieldCipher, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	return NewFieldCipher(raw)
}

// Encrypt returns base64(nonce || ciphertext).
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrDecrypt, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

// GenerateEncryptionKey returns a new random key, hex encoded.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate encryption key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateEncryptionKey returns a new random hex key. It does not change the
// instance key.
func (h *Helper) GenerateEncryptionKey() (string, error) {
	return GenerateEncryptionKey()
}

// Encrypt encrypts data under the instance key.
func (h *Helper) Encrypt(data string) (string, error) {
	return h.cipher.Encrypt(data)
}

// Decrypt decrypts data sealed under the instance key.
func (h *Helper) Decrypt(data string) (string, error) {
	return h.cipher.Decrypt(data)
}

// EncryptWithKey encrypts data under a caller-supplied hex key.
func (h *Helper) EncryptWithKey(data, key string) (string, error) {
	c, err := NewFieldCipherFromHex(key)
	if err != nil {
		return "", err
	}
	return c.Encrypt(data)
}

// DecryptWithKey decrypts data sealed under a caller-supplied hex key.
func (h *Helper) DecryptWithKey(data, key string) (string, error) {
	c, err := NewFieldCipherFromHex(key)
	if err != nil {
		return "", err
	}
	return c.Decrypt(data)
}
