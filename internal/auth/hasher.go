// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// HasherParams are the argon2id cost parameters.
type HasherParams struct {
	Time      uint32 // iterations
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32 // bytes
	KeyLen    uint32 // bytes
}

// DefaultHasherParams returns the OWASP-recommended argon2id parameters.
func DefaultHasherParams() HasherParams {
	return HasherParams{
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// Validate rejects parameters argon2 cannot run with or that are too weak to be useful.
func (p HasherParams) Validate() error {
	switch {
	case p.Time == 0:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("time must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB == 0:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("memory must be at least 8 KiB per thread")
	case p.Threads == 0:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("threads must be at least 1")
	case p.SaltLen < 8:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("salt length must be at least 8 bytes")
	case p.KeyLen < 16:
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("key length must be at least 16 bytes")
	}
	return nil
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or (false, err) on a malformed digest.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the digest should be recomputed with the current parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. Digests produced by
// bcrypt are still accepted by Verify and always reported by NeedsUpgrade.
type Argon2idHasher struct {
	params HasherParams
}

// NewArgon2idHasher creates a hasher with DefaultHasherParams.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultHasherParams()}
}

// NewArgon2idHasherWithParams creates a hasher with explicit cost parameters.
func NewArgon2idHasherWithParams(params HasherParams) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id digest in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	d, err := parseArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.MemoryKiB, d.params.Threads, d.params.KeyLen)
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade returns true for bcrypt digests, malformed digests and argon2id
// digests produced with parameters other than the configured ones.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	d, err := parseArgon2id(encodedHash)
	if err != nil {
		return true
	}
	p := d.params
	return p.Time != h.params.Time ||
		p.MemoryKiB != h.params.MemoryKiB ||
		p.Threads != h.params.Threads ||
		p.KeyLen != h.params.KeyLen ||
		uint32(len(d.salt)) != h.params.SaltLen
}

// DummyHash returns a well-formed digest at the configured cost that no
// password matches. Login verifies against it when the account does not exist
// so both paths cost the same.
func (h *Argon2idHasher) DummyHash() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(make([]byte, h.params.SaltLen)),
		base64.RawStdEncoding.EncodeToString(make([]byte, h.params.KeyLen)),
	)
}

type argon2Digest struct {
	params HasherParams
	salt   []byte
	key    []byte
}

// Upper bounds on parameters read back from a stored digest. A tampered row
// must not be able to make a single Verify allocate gigabytes.
const (
	maxDigestMemoryKiB = 4 * 1024 * 1024
	maxDigestTime      = 64
	maxDigestKeyLen    = 1024
)

func parseArgon2id(encodedHash string) (*argon2Digest, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if iterations == 0 || iterations > maxDigestTime {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("time value %d out of range", iterations)
	}
	if memory == 0 || memory > maxDigestMemoryKiB {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d out of range", memory)
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(salt) == 0 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("empty salt")
	}

	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > maxDigestKeyLen {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Digest{
		params: HasherParams{
			Time:      iterations,
			MemoryKiB: memory,
			Threads:   uint8(threads),
			SaltLen:   uint32(len(salt)),
			KeyLen:    uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
	}
}
