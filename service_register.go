package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/authcore/internal"
)

// Register creates an account with a password credential. The email must not
// belong to an existing non-deleted account. On success default domain data
// is seeded and an email-verification link is sent; both are best-effort and
// never fail the registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*PublicAccount, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.store.FindAccountByEmail(ctx, email); err == nil && existing != nil && !existing.Deleted {
		s.metricInc(MetricRegisterDuplicate)
		s.emitAudit(ctx, auditActionRegister, false, "", ErrAlreadyExists, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrAlreadyExists
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	encryptedName, err := s.codec.Encrypt(strings.TrimSpace(req.Name))
	if err != nil {
		return nil, err
	}
	verifyToken, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	verifyExpiry := now.Add(s.config.EmailVerification.TokenTTL)
	account := &Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      encryptedName,
		Role:      RoleUser,
		Active:    true,
		CreatedAt: now,
	}
	cred := &Credential{
		AccountID:            account.ID,
		PasswordHash:         passwordHash,
		VerifyToken:          verifyToken,
		VerifyTokenExpiresAt: &verifyExpiry,
	}

	if err := s.store.CreateAccountWithCredential(ctx, account, cred); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.metricInc(MetricRegisterDuplicate)
		}
		return nil, err
	}

	s.seedDefaults(ctx, account.ID)
	s.notifyFailure(ctx, account.ID, "email_verification",
		s.notifier.SendEmailVerificationLink(ctx, account.Email, verifyToken))

	s.metricInc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditActionRegister, true, account.ID, nil, nil)

	public := s.publicAccount(account)
	return &public, nil
}

// SoftDeleteAccount marks an account deleted and scrubs its secrets. The
// email is scrambled so the address can be registered again; the row itself
// is kept for referential integrity.
func (s *Service) SoftDeleteAccount(ctx context.Context, accountID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}

	deleted := true
	inactive := false
	scrambled := "deleted+" + uuid.NewString() + "@invalid.local"
	none := ""
	if err := s.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		Email:             &scrambled,
		Deleted:           &deleted,
		Active:            &inactive,
		Provider:          &none,
		ProviderAccountID: &none,
	}); err != nil {
		return err
	}

	disabled := false
	noCodes := []string{}
	zeroTime := time.Time{}
	_ = s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		MFAEnabled:           &disabled,
		MFASecret:            &none,
		BackupCodeHashes:     &noCodes,
		ResetToken:           &none,
		ResetTokenExpiresAt:  &zeroTime,
		VerifyToken:          &none,
		VerifyTokenExpiresAt: &zeroTime,
	})

	s.emitAudit(ctx, auditActionAccountSoftDelete, true, account.ID, nil, func() map[string]string {
		return map[string]string{"email": account.Email}
	})
	return nil
}

// seedDefaults provisions default categories and payment methods for a new
// account. Seeding failures never fail account creation.
func (s *Service) seedDefaults(ctx context.Context, accountID string) {
	if s.seeder == nil {
		return
	}
	_ = s.seeder.SeedDefaultCategories(ctx, accountID)
	_ = s.seeder.SeedDefaultPaymentMethods(ctx, accountID)
}
