// Package hashing derives and verifies ingest token hashes. Tenants
// store only the derived hash; the token itself is handed out once at
// provisioning time.
package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid hash format")

const algorithm = "argon2id-v1"

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are tuned for a per-request verification on the hot
// ingest path, not for interactive login hardness.
func DefaultParams() Argon2Params {
	return Argon2Params{
		Memory:      16 * 1024,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type Hasher struct {
	params Argon2Params
}

func NewHasher(params Argon2Params) *Hasher {
	return &Hasher{params: params}
}

// HashToken derives the stored form of an ingest token:
// "argon2id-v1$<salt>$<hash>" with raw-URL base64 segments.
func (h *Hasher) HashToken(token string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(token),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return strings.Join([]string{
		algorithm,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(hash),
	}, "$"), nil
}

// VerifyToken checks a presented token against a stored hash in
// constant time.
func (h *Hasher) VerifyToken(token, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != algorithm {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(
		[]byte(token),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
