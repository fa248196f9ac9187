// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// # Digest Formats

// DigestFormat identifies how a stored password digest was produced.
//
// Accounts created before the argon2id migration still carry bcrypt or
// plain sha256 digests. All three verify; only argon2id is ever written.
type DigestFormat string

const (
	FormatArgon2id     DigestFormat = "argon2id"
	FormatBcrypt       DigestFormat = "bcrypt"
	FormatLegacySHA256 DigestFormat = "sha256"
	FormatUnknown      DigestFormat = ""
)

// DetectFormat classifies a stored digest by its prefix and shape.
func DetectFormat(digest string) DigestFormat {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return FormatArgon2id
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return FormatBcrypt
	case isLegacyDigest(digest):
		return FormatLegacySHA256
	default:
		return FormatUnknown
	}
}

func isLegacyDigest(digest string) bool {
	if len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

// # Argon2id Parameters

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// # Password Hasher

// PasswordHasher turns plain-text passwords into versioned digests and
// verifies candidates against any supported format.
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher builds a hasher writing argon2id digests with params.
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash derives a salted argon2id digest. An empty password is hashed like any
// other string; length policy belongs to the caller.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest. Malformed or unknown
// digests never match.
func (h *PasswordHasher) Verify(password, digest string) bool {
	switch DetectFormat(digest) {
	case FormatArgon2id:
		return verifyArgon2id(password, digest)
	case FormatBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	case FormatLegacySHA256:
		expected := LegacyHash(password)
		return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(digest))) == 1
	default:
		return false
	}
}

// NeedsRehash reports whether digest should be replaced after a successful
// login: any non-argon2id format, or argon2id with outdated parameters.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	if DetectFormat(digest) != FormatArgon2id {
		return true
	}
	params, _, key, err := decodeArgon2id(digest)
	if err != nil {
		return true
	}
	return params.Memory != h.params.Memory ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism ||
		uint32(len(key)) != h.params.KeyLength
}

// LegacyHash reproduces the historical unsalted digest (hex sha256). It is
// kept for verification of old accounts and must not be used for new ones.
func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// # Argon2id Encoding

func verifyArgon2id(password, digest string) bool {
	params, salt, key, err := decodeArgon2id(digest)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

func decodeArgon2id(digest string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return params, nil, nil, fmt.Errorf("sec: malformed argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("sec: malformed argon2id version: %w", err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("sec: unsupported argon2id version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("sec: malformed argon2id parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("sec: malformed argon2id salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, fmt.Errorf("sec: malformed argon2id key")
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
