// Package tokencrypt encrypts OAuth secrets at rest with AES-256-CBC.
//
// Ciphertexts are encoded as hex(iv) + ":" + hex(ciphertext) with a fresh
// random IV per call, so encrypting the same value twice never produces the
// same string.
package tokencrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrMissingKey is returned when no encryption key is configured.
	ErrMissingKey = errors.New("encryption key is not configured")
	// ErrInvalidKey is returned when the key is not 64 hex characters.
	ErrInvalidKey = errors.New("encryption key must be 64 hex characters")
	// ErrMalformedData is returned when a ciphertext is not in iv:ciphertext hex form.
	ErrMalformedData = errors.New("malformed encrypted data")
)

// Cipher is safe for concurrent use.
type Cipher struct {
	key []byte
}

// New parses a hex encoded 32 byte key.
func New(hexKey string) (*Cipher, error) {
	if hexKey == "" {
		return nil, ErrMissingKey
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns hex(iv):hex(ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any input that is not exactly two hex segments
// separated by a colon fails with ErrMalformedData.
func (c *Cipher) Decrypt(data string) (string, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrMalformedData
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrMalformedData
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformedData
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// DerivePassword derives a stable secret for label from the key using HKDF-SHA256.
// Output is 32 hex characters.
func (c *Cipher) DerivePassword(label string) (string, error) {
	r := hkdf.New(sha256.New, c.key, nil, []byte("workspace-account:"+label))
	buf := make([]byte, 16)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("derive password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrMalformedData
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrMalformedData
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrMalformedData
		}
	}
	return b[:len(b)-n], nil
}
