package authcore

import (
	"errors"

	"github.com/fintrack/authcore/fieldcrypt"
)

var (
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords,
	// and deactivated accounts alike; callers cannot distinguish which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is active,
	// independent of password correctness.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidChallenge is returned when a challenge token fails signature
	// or claim checks, or has already been consumed.
	ErrInvalidChallenge = errors.New("invalid mfa challenge")
	// ErrChallengeExpired is returned when a challenge token's expiry has
	// passed.
	ErrChallengeExpired = errors.New("mfa challenge expired")
	// ErrInvalidMFACode is returned when neither the TOTP code nor any stored
	// backup code matches.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrMFASetupNotInitiated is returned by MFA operations that require a
	// pending or enabled secret when none exists.
	ErrMFASetupNotInitiated = errors.New("mfa setup not initiated")
	// ErrConfirmationRequired is returned by DisableMFA when the caller has
	// not explicitly confirmed the action.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrProviderAlreadyLinked is returned when a (provider, providerAccountID)
	// pair already belongs to a different account.
	ErrProviderAlreadyLinked = errors.New("provider already linked to another account")
	// ErrInvalidProvider is returned for provider names outside the configured
	// allow-list, and for unlink requests naming a provider the account is not
	// linked to.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrNoFallbackCredential is returned when unlinking would leave the
	// account with no way to sign in.
	ErrNoFallbackCredential = errors.New("no fallback credential")
	// ErrDecryptionFailed is returned when an encrypted value cannot be
	// authenticated and decrypted. It is the same sentinel the fieldcrypt
	// codec returns, so either package's errors.Is check matches.
	ErrDecryptionFailed = fieldcrypt.ErrDecryptionFailed
	// ErrConfiguration is returned by Builder.Build when a required secret or
	// setting is missing. It is fatal: the process must not serve traffic.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotFound is returned for lookups that name no live record, including
	// unknown or expired reset and verification tokens.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by Register for duplicate emails.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidEmail is returned by Register for addresses that cannot be an
	// email.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrNotReady is returned when a Service method is invoked on a nil or
	// partially constructed receiver.
	ErrNotReady = errors.New("service not initialized")
)
