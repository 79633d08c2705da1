package database

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealed is returned when a stored value fails authentication.
var ErrSealed = errors.New("sealed value failed authentication")

// Argon2id parameters for passphrase derived keys.
const (
	saltSize      = 16
	argonTime     = 1
	argonMemoryKB = 64 * 1024
	argonThreads  = 4
)

// SealedRepository encrypts every value of an inner repository with
// XChaCha20-Poly1305. The key name is bound as additional data so a value
// cannot be moved under another key.
type SealedRepository struct {
	inner AuthRepository
	aead  cipher.AEAD
}

// ParseKey decodes a hex-encoded 32 byte key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode store key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("store key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// NewSealedRepository wraps inner using a raw 32 byte key.
func NewSealedRepository(inner AuthRepository, key []byte) (*SealedRepository, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &SealedRepository{inner: inner, aead: aead}, nil
}

// NewSealedRepositoryWithPassphrase derives the key with Argon2id. The salt is
// read from inner, or generated and stored on first use.
func NewSealedRepositoryWithPassphrase(ctx context.Context, inner AuthRepository, passphrase string) (*SealedRepository, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	salt, err := inner.Get(ctx, KeySalt)
	if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := inner.Set(ctx, map[string][]byte{KeySalt: salt}); err != nil {
			return nil, fmt.Errorf("save salt: %w", err)
		}
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemoryKB, argonThreads, chacha20poly1305.KeySize)
	return NewSealedRepository(inner, key)
}

// Get opens the value stored under key.
func (r *SealedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.inner.Get(ctx, key)
	if err != nil || data == nil || key == KeySalt {
		return data, err
	}
	return r.open(key, data)
}

// Set seals every value before handing the batch to the inner repository.
func (r *SealedRepository) Set(ctx context.Context, values map[string][]byte) error {
	sealed := make(map[string][]byte, len(values))
	for k, v := range values {
		if k == KeySalt {
			sealed[k] = v
			continue
		}
		s, err := r.seal(k, v)
		if err != nil {
			return err
		}
		sealed[k] = s
	}
	return r.inner.Set(ctx, sealed)
}

// Clear is passed through unchanged.
func (r *SealedRepository) Clear(ctx context.Context, keys ...string) error {
	return r.inner.Clear(ctx, keys...)
}

func (r *SealedRepository) seal(key string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, r.aead.NonceSize(), r.aead.NonceSize()+len(plaintext)+r.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return r.aead.Seal(nonce, nonce, plaintext, []byte(key)), nil
}

func (r *SealedRepository) open(key string, data []byte) ([]byte, error) {
	n := r.aead.NonceSize()
	if len(data) < n+r.aead.Overhead() {
		return nil, fmt.Errorf("%w: %s", ErrSealed, key)
	}
	plaintext, err := r.aead.Open(nil, data[:n], data[n:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSealed, key)
	}
	return plaintext, nil
}
