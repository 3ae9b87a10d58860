package internal

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
)

// BackupCodeAlphabet excludes 0/O/1/I/L to keep codes human-enterable.
const BackupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const opaqueTokenBytes = 32

// NewOpaqueToken returns a URL-safe random token for password-reset and
// email-verification links.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewBackupCode returns a random code of the given significant length drawn
// from BackupCodeAlphabet.
func NewBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(BackupCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// FormatBackupCode inserts a mid-point separator for readability
// ("ABCDE23456" -> "ABCDE-23456").
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode strips separators and whitespace and upper-cases, so
// user input matches regardless of how the code was transcribed.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
