package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrDecrypt = errors.New("vault: ciphertext could not be decrypted")

// Cipher seals individual credential values with NaCl secretbox.
type Cipher struct {
	key [keySize]byte
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(key))
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	opened, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(opened), nil
}

// KeyStatus describes how LoadOrCreateKey obtained the key.
type KeyStatus string

const (
	KeyLoaded      KeyStatus = "loaded"
	KeyCreated     KeyStatus = "created"
	KeyRegenerated KeyStatus = "regenerated"
)

// LoadOrCreateKey reads the base64 key at path. A missing file creates a new
// key; an unreadable or malformed one is replaced, which leaves any
// ciphertext sealed with the old key unrecoverable.
func LoadOrCreateKey(path string) ([]byte, KeyStatus, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, "", errors.New("vault key path is required")
	}

	status := KeyCreated
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if decodeErr == nil && len(key) == keySize {
			return key, KeyLoaded, nil
		}
		status = KeyRegenerated
	case errors.Is(err, os.ErrNotExist):
	default:
		status = KeyRegenerated
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, "", fmt.Errorf("generate vault key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := writeFileAtomic(path, []byte(encoded), 0o600); err != nil {
		return nil, "", fmt.Errorf("write vault key: %w", err)
	}
	return key, status, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
