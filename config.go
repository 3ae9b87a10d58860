package authcore

import (
	"fmt"
	"time"
)

// Config defines the complete tunable surface of the service. Instances are
// intended to be configured during initialization and then treated as
// immutable.
type Config struct {
	Encryption        EncryptionConfig
	Token             TokenConfig
	Lockout           LockoutConfig
	MFA               MFAConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Federated         FederatedConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// EncryptionConfig carries the process-wide field-encryption secret. It is
// injected into the fieldcrypt codec at construction; there is no implicit
// global lookup.
type EncryptionConfig struct {
	Secret string
}

// TokenConfig configures the signed session and challenge tokens.
type TokenConfig struct {
	SigningSecret []byte
	Issuer        string
	SessionTTL    time.Duration // default session lifetime
	RememberMeTTL time.Duration // extended lifetime when rememberMe is set
	ChallengeTTL  time.Duration // MFA challenge lifetime, fixed and short
}

// LockoutConfig controls the brute-force lockout state machine.
type LockoutConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
}

// MFAConfig controls TOTP enrollment and backup codes.
type MFAConfig struct {
	Issuer           string // issuer label in the otpauth:// provisioning URI
	BackupCodeCount  int
	BackupCodeLength int // significant characters, excluding the group separator
}

// PasswordConfig carries Argon2id parameters for password and backup-code
// hashing.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordResetConfig controls reset-token issuance.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

// EmailVerificationConfig controls verification-token issuance.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// FederatedConfig lists the accepted federated-identity provider names.
// Anything outside the list is rejected with ErrInvalidProvider.
type FederatedConfig struct {
	Providers []string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:        "authcore",
			SessionTTL:    24 * time.Hour,
			RememberMeTTL: 30 * 24 * time.Hour,
			ChallengeTTL:  5 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			Window:            15 * time.Minute,
		},
		MFA: MFAConfig{
			Issuer:           "FinTrack",
			BackupCodeCount:  10,
			BackupCodeLength: 10,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		Federated: FederatedConfig{
			Providers: []string{"google", "github"},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first configuration problem found. A non-nil result
// satisfies errors.Is(err, ErrConfiguration) and must be treated as fatal:
// the process must not serve traffic with a missing encryption or signing
// secret.
func (c Config) Validate() error {
	if c.Encryption.Secret == "" {
		return fmt.Errorf("%w: encryption secret is required", ErrConfiguration)
	}
	if len(c.Token.SigningSecret) < 32 {
		return fmt.Errorf("%w: token signing secret must be at least 32 bytes", ErrConfiguration)
	}
	if c.Token.SessionTTL <= 0 || c.Token.RememberMeTTL <= 0 {
		return fmt.Errorf("%w: session lifetimes must be positive", ErrConfiguration)
	}
	if c.Token.RememberMeTTL < c.Token.SessionTTL {
		return fmt.Errorf("%w: remember-me lifetime must not be shorter than the default", ErrConfiguration)
	}
	if c.Token.ChallengeTTL <= 0 || c.Token.ChallengeTTL > 15*time.Minute {
		return fmt.Errorf("%w: challenge lifetime must be positive and short", ErrConfiguration)
	}
	if c.Lockout.MaxFailedAttempts < 1 {
		return fmt.Errorf("%w: lockout max attempts must be >= 1", ErrConfiguration)
	}
	if c.Lockout.Window <= 0 {
		return fmt.Errorf("%w: lockout window must be positive", ErrConfiguration)
	}
	if c.MFA.BackupCodeCount < 1 || c.MFA.BackupCodeLength < 8 {
		return fmt.Errorf("%w: backup code count must be >= 1 and length >= 8", ErrConfiguration)
	}
	if len(c.Federated.Providers) == 0 {
		return fmt.Errorf("%w: at least one federated provider must be configured", ErrConfiguration)
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningSecret = append([]byte(nil), cfg.Token.SigningSecret...)
	out.Federated.Providers = append([]string(nil), cfg.Federated.Providers...)
	return out
}
