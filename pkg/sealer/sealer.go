package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const separator = "|"

var ErrInvalidToken = errors.New("invalid token")

// Sealer turns a short list of fields into an opaque, tamper-proof URL-safe
// token using AES-GCM.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 (std encoding) AES key of 16, 24 or 32
// bytes.
func New(keyB64 string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode sealer key: %w", err)
	}
	return newFromKey(key)
}

// NewRandom builds a Sealer with a process-local key. Tokens do not survive a
// restart or travel between replicas.
func NewRandom() (*Sealer, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return newFromKey(key)
}

func newFromKey(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aesgcm}, nil
}

func (s *Sealer) Seal(fields ...string) (string, error) {
	for _, f := range fields {
		if strings.Contains(f, separator) {
			return "", fmt.Errorf("field %q contains reserved separator", f)
		}
	}
	plaintext := []byte(strings.Join(fields, separator))

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open reverses Seal and checks that exactly n fields were sealed.
func (s *Sealer) Open(token string, n int) ([]string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidToken
	}
	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parts := strings.Split(string(pt), separator)
	if len(parts) != n {
		return nil, ErrInvalidToken
	}
	return parts, nil
}
