package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minInputBytes         = 8
	algorithmID           = "argon2id"
)

// ErrWeakInput is returned by Hash for inputs below the minimum length.
var ErrWeakInput = errors.New("password: input must be at least 8 bytes")

// Config carries the Argon2id cost parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher computes and verifies Argon2id hashes in PHC string format. It is
// used for both account passwords and MFA backup codes; both require a
// deliberately slow, salted hash rather than a fast digest.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a PHC-encoded Argon2id hash with a fresh random salt.
// Input bytes are used exactly as provided (no Unicode normalization).
func (h *Hasher) Hash(input string) (string, error) {
	if len(input) < minInputBytes {
		return "", ErrWeakInput
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(input),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether input matches the PHC-encoded hash, using the cost
// parameters and salt embedded in the hash. Comparison is constant-time.
func (h *Hasher) Verify(input, encodedHash string) (bool, error) {
	params, salt, key, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(input),
		salt,
		params.time,
		params.memory,
		params.parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func decodePHC(encodedHash string) (phcParams, []byte, []byte, error) {
	var params phcParams

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, errors.New("password: invalid PHC format")
	}
	if parts[1] != algorithmID {
		return params, nil, nil, errors.New("password: unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, errors.New("password: invalid argon2 version")
	}
	if version != argon2.Version {
		return params, nil, nil, errors.New("password: unsupported argon2 version")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.parallelism); err != nil {
		return params, nil, nil, errors.New("password: invalid cost parameters")
	}
	if params.memory < minMemoryKB || params.time < minTimeCost || params.parallelism < minParallelism {
		return params, nil, nil, errors.New("password: cost parameters below minimum")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return params, nil, nil, errors.New("password: invalid salt")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < int(minKeyLength) {
		return params, nil, nil, errors.New("password: invalid key")
	}

	return params, salt, key, nil
}
