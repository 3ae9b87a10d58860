package authcore

import (
	"context"
	"time"
)

// Role is the coarse authorization role carried by an Account and embedded in
// session tokens.
type Role string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"
	// RoleAdmin marks administrative accounts.
	RoleAdmin Role = "admin"
)

// Account is the identity-bearing entity. Email is globally unique among
// non-deleted accounts; at most one account may hold a given
// (Provider, ProviderAccountID) pair when Provider is set.
type Account struct {
	ID                string
	Email             string
	Name              string // encrypted at rest via fieldcrypt when non-empty
	Role              Role
	Active            bool
	Deleted           bool
	EmailVerified     bool
	Provider          string
	ProviderAccountID string
	LastLoginAt       *time.Time
	CreatedAt         time.Time
}

// Credential is the 1:1 companion of an Account, created atomically with it
// and never deleted independently. It carries everything the login, lockout,
// MFA, reset, and verification flows mutate.
//
// Invariants: MFASecret is non-empty only while enrollment is pending or MFA
// is enabled; BackupCodeHashes is non-empty only when MFA is enabled.
type Credential struct {
	AccountID            string
	PasswordHash         string // Argon2id PHC string, empty for some federated accounts
	FailedLoginAttempts  int
	LastFailedLoginAt    *time.Time
	LockedUntil          *time.Time
	MFAEnabled           bool
	MFASecret            string // fieldcrypt-encrypted TOTP secret
	BackupCodeHashes     []string
	ResetToken           string
	ResetTokenExpiresAt  *time.Time
	VerifyToken          string
	VerifyTokenExpiresAt *time.Time
	PasswordChangedAt    *time.Time
}

// AccountUpdate is a partial update applied by Store.UpdateAccount. Nil fields
// are left untouched.
type AccountUpdate struct {
	Email             *string
	Name              *string
	Active            *bool
	Deleted           *bool
	EmailVerified     *bool
	Provider          *string
	ProviderAccountID *string
	LastLoginAt       *time.Time
}

// CredentialUpdate is a partial update applied by Store.UpdateCredential. Nil
// fields are left untouched. For nullable timestamps a non-nil pointer to the
// zero time clears the column.
type CredentialUpdate struct {
	PasswordHash         *string
	FailedLoginAttempts  *int
	LastFailedLoginAt    *time.Time
	LockedUntil          *time.Time
	ClearLockout         bool
	MFAEnabled           *bool
	MFASecret            *string
	BackupCodeHashes     *[]string
	ResetToken           *string
	ResetTokenExpiresAt  *time.Time
	VerifyToken          *string
	VerifyTokenExpiresAt *time.Time
	PasswordChangedAt    *time.Time
}

// Store is the persistence interface callers must implement to integrate
// authcore with their database. Lookups that match nothing return ErrNotFound
// (or an error satisfying errors.Is(err, ErrNotFound)).
//
// Concurrency contract: IncrementFailedAttempts must apply the whole
// read-modify-write in one atomic step (a relative update or row transaction),
// so that two concurrent failed logins never under-count the failure tally.
// ConsumeBackupCode must remove the given hash only if it is still present and
// report whether it did; two concurrent consumers of the same hash must see
// exactly one true. UpdateCredential applies each update atomically per
// account.
type Store interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	FindAccountByProvider(ctx context.Context, provider, providerAccountID string) (*Account, error)
	FindCredentialByAccountID(ctx context.Context, accountID string) (*Credential, error)
	FindCredentialByResetToken(ctx context.Context, token string) (*Credential, error)
	FindCredentialByVerificationToken(ctx context.Context, token string) (*Credential, error)
	CreateAccountWithCredential(ctx context.Context, account *Account, credential *Credential) error
	UpdateAccount(ctx context.Context, id string, update AccountUpdate) error
	UpdateCredential(ctx context.Context, accountID string, update CredentialUpdate) error

	// IncrementFailedAttempts applies one login failure to the account's
	// tally in a single atomic step: a tally whose previous failure is older
	// than window restarts at one, any other increments, and the failure
	// timestamp is set to at. It returns the resulting tally.
	IncrementFailedAttempts(ctx context.Context, accountID string, at time.Time, window time.Duration) (int, error)
	ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error)
}

// Notifier delivers outbound email. All methods are best-effort from the
// service's perspective: failures are audited and swallowed, never surfaced to
// the caller of an otherwise successful operation.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, email, token string) error
	SendMFASetupEmail(ctx context.Context, email, qrPayload, secret string) error
	SendEmailVerificationLink(ctx context.Context, email, token string) error
}

// Seeder provisions default domain data (categories, payment methods) for
// newly created accounts. Invoked on creation paths only; failures are
// swallowed.
type Seeder interface {
	SeedDefaultCategories(ctx context.Context, accountID string) error
	SeedDefaultPaymentMethods(ctx context.Context, accountID string) error
}

// NoOpNotifier discards all outbound mail.
type NoOpNotifier struct{}

func (NoOpNotifier) SendPasswordResetEmail(context.Context, string, string) error { return nil }
func (NoOpNotifier) SendMFASetupEmail(context.Context, string, string, string) error {
	return nil
}
func (NoOpNotifier) SendEmailVerificationLink(context.Context, string, string) error { return nil }

// NoOpSeeder seeds nothing.
type NoOpSeeder struct{}

func (NoOpSeeder) SeedDefaultCategories(context.Context, string) error     { return nil }
func (NoOpSeeder) SeedDefaultPaymentMethods(context.Context, string) error { return nil }

// PublicAccount is the caller-safe projection of an Account. It never carries
// password material, MFA secrets, or backup-code hashes.
type PublicAccount struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
	Provider      string `json:"provider,omitempty"`
}

// LoginResult is returned by Login, CompleteLoginWithMFA, and
// ResolveFederatedIdentity. Exactly one of the two shapes is populated: when
// RequireMFA is true only ChallengeToken is set; otherwise Token and Account
// are set.
type LoginResult struct {
	Token          string        `json:"token,omitempty"`
	Account        PublicAccount `json:"account,omitempty"`
	RequireMFA     bool          `json:"requireMfa,omitempty"`
	ChallengeToken string        `json:"challengeToken,omitempty"`
}

// MFAEnrollment is returned by GenerateMFASecret. Secret is the base32 TOTP
// secret for manual entry; ProvisioningURI is the otpauth:// payload rendered
// as a QR code by the client.
type MFAEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

// RegisterRequest is the input for Service.Register.
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}
