package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Version prefixes every encoded value so "is this encrypted" checks have
	// an explicit marker instead of guessing from shape.
	Version byte = 0x01

	ivSize   = 16
	tagSize  = 16
	saltSize = 64
	keySize  = 32

	kdfIterations = 2145

	minEncodedSize = 1 + ivSize + tagSize + saltSize
)

var (
	// ErrDecryptionFailed is returned for malformed input, authentication
	// failures, and wrong keys alike. The codec fails closed: it never returns
	// partially decrypted data.
	ErrDecryptionFailed = errors.New("fieldcrypt: decryption failed")
	// ErrMissingSecret is returned by New when no secret is configured.
	ErrMissingSecret = errors.New("fieldcrypt: encryption secret is required")
)

// Codec performs authenticated field-level encryption of short text values.
// Each call derives a fresh 256-bit key from the configured secret and a
// random per-value salt, so two encryptions of the same plaintext differ.
//
// Encoded layout, base64 of: version || IV[16] || tag[16] || salt[64] || ciphertext.
type Codec struct {
	secret []byte
}

// New creates a Codec. It fails fast when secret is empty; a service must not
// start without one.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Encrypt returns the encoded encryption of plaintext. Empty input passes
// through unchanged so callers need not branch on optional fields.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal emits ciphertext||tag; the encoded layout keeps the tag up front.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	raw := make([]byte, 0, minEncodedSize+len(ciphertext))
	raw = append(raw, Version)
	raw = append(raw, iv...)
	raw = append(raw, tag...)
	raw = append(raw, salt...)
	raw = append(raw, ciphertext...)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt reverses Encrypt. Empty input passes through unchanged. Any
// malformed value, authentication failure, or wrong key yields
// ErrDecryptionFailed.
func (c *Codec) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < minEncodedSize || raw[0] != Version {
		return "", ErrDecryptionFailed
	}

	iv := raw[1 : 1+ivSize]
	tag := raw[1+ivSize : 1+ivSize+tagSize]
	salt := raw[1+ivSize+tagSize : minEncodedSize]
	ciphertext := raw[minEncodedSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the codec's version marker. It is
// the single, consistent "already encrypted" check for every caller.
func IsEncrypted(value string) bool {
	if value == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) >= minEncodedSize && raw[0] == Version
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.secret, salt, kdfIterations, keySize, sha512.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}
