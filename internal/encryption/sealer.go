package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"traktical/models"
)

const (
	fileNonceSize = 24
	keySize       = 32
	hkdfInfo      = "traktical token sealing v1"
	stateInfo     = "traktical oauth state v1"
)

// ErrOpen is returned when a sealed blob cannot be authenticated.
var ErrOpen = errors.New("sealed token could not be opened")

type nonce [fileNonceSize]byte

// GenerateRandomNonce returns a fresh random nonce.
func GenerateRandomNonce() (nonce, error) {
	var n nonce
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return n, fmt.Errorf("failed to read random nonce: %w", err)
	}
	return n, nil
}

// ToBytes returns the nonce as a byte slice.
func (n *nonce) ToBytes() []byte {
	return n[:]
}

// Sealer encrypts token blobs at rest.
type Sealer struct {
	key [keySize]byte
}

// NewSealer derives the sealing key from the application secret.
func NewSealer(secret string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("secret key is required")
	}

	key, err := deriveKey(secret, hkdfInfo)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// StateKey derives the key that signs OAuth state values. It is independent
// of the sealing key.
func StateKey(secret string) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("secret key is required")
	}
	return deriveKey(secret, stateInfo)
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext. The output is nonce || box.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	n, err := GenerateRandomNonce()
	if err != nil {
		return nil, err
	}
	nb := [fileNonceSize]byte(n)
	return secretbox.Seal(n.ToBytes(), plaintext, &nb, &s.key), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < fileNonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var n [fileNonceSize]byte
	copy(n[:], sealed[:fileNonceSize])
	out, ok := secretbox.Open(nil, sealed[fileNonceSize:], &n, &s.key)
	if !ok {
		return nil, ErrOpen
	}
	return out, nil
}

// SealToken serializes and encrypts a token pair.
func (s *Sealer) SealToken(tok models.StoredToken) ([]byte, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	return s.Seal(raw)
}

// OpenToken decrypts and decodes a sealed token pair.
func (s *Sealer) OpenToken(sealed []byte) (models.StoredToken, error) {
	var tok models.StoredToken
	raw, err := s.Open(sealed)
	if err != nil {
		return tok, err
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return tok, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// EnsureSecretKey returns secret when set. Otherwise it generates a key,
// appends SECRET_KEY to envPath so restarts keep it, and exports it to the
// process environment.
func EnsureSecretKey(secret, envPath string) (string, error) {
	if strings.TrimSpace(secret) != "" {
		return secret, nil
	}

	buf := make([]byte, keySize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	key := hex.EncodeToString(buf)

	f, err := os.OpenFile(envPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", envPath, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\nSECRET_KEY=%s\n", key); err != nil {
		return "", fmt.Errorf("write %s: %w", envPath, err)
	}
	if err := os.Setenv("SECRET_KEY", key); err != nil {
		return "", err
	}
	return key, nil
}
