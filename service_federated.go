package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/authcore/internal"
)

// ResolveFederatedIdentity signs in a user asserted by a federated provider,
// creating the account on first contact. An existing account with the same
// email is re-pointed at the asserting provider; this email-based takeover is
// deliberate and always audited, since the provider has already verified
// control of the address.
func (s *Service) ResolveFederatedIdentity(ctx context.Context, email, displayName, provider, providerAccountID string) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !s.providerAllowed(provider) {
		return nil, ErrInvalidProvider
	}
	if providerAccountID == "" {
		return nil, ErrInvalidProvider
	}

	email = normalizeEmail(email)
	account, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	switch {
	case account == nil || account.Deleted:
		account, err = s.createFederatedAccount(ctx, email, displayName, provider, providerAccountID)
		if err != nil {
			return nil, err
		}
	case !account.Active:
		// Deactivation closes every door, the federated one included.
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditActionFederatedLogin, false, account.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "account_inactive"}
		})
		return nil, ErrInvalidCredentials
	default:
		if err := s.repointProvider(ctx, account, provider, providerAccountID); err != nil {
			return nil, err
		}
	}

	s.metricInc(MetricFederatedLogin)
	return s.finishLogin(ctx, auditActionFederatedLogin, account, false)
}

// LinkAccount attaches a provider identity to an existing account. Linking
// the same identity to the same account again is an idempotent success;
// linking it while another account holds it fails.
func (s *Service) LinkAccount(ctx context.Context, accountID, provider, providerAccountID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !s.providerAllowed(provider) || providerAccountID == "" {
		return ErrInvalidProvider
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}

	holder, err := s.store.FindAccountByProvider(ctx, provider, providerAccountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if holder != nil && !holder.Deleted {
		if holder.ID == account.ID {
			return nil
		}
		s.emitAudit(ctx, auditActionProviderLink, false, account.ID, ErrProviderAlreadyLinked, func() map[string]string {
			return map[string]string{"provider": provider}
		})
		return ErrProviderAlreadyLinked
	}

	if err := s.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		Provider:          &provider,
		ProviderAccountID: &providerAccountID,
	}); err != nil {
		return err
	}

	s.metricInc(MetricProviderLinked)
	s.emitAudit(ctx, auditActionProviderLink, true, account.ID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return nil
}

// UnlinkProvider detaches the account's current provider identity. It
// refuses to strand the account: without a password credential there would
// be no way left to sign in.
func (s *Service) UnlinkProvider(ctx context.Context, accountID, provider string) error {
	if err := s.ready(); err != nil {
		return err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Provider == "" || account.Provider != provider {
		return ErrInvalidProvider
	}

	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil {
		return err
	}
	if cred.PasswordHash == "" {
		s.emitAudit(ctx, auditActionProviderUnlink, false, account.ID, ErrNoFallbackCredential, func() map[string]string {
			return map[string]string{"provider": provider}
		})
		return ErrNoFallbackCredential
	}

	none := ""
	if err := s.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		Provider:          &none,
		ProviderAccountID: &none,
	}); err != nil {
		return err
	}

	s.metricInc(MetricProviderUnlinked)
	s.emitAudit(ctx, auditActionProviderUnlink, true, account.ID, nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})
	return nil
}

// createFederatedAccount provisions a new account for a first federated
// sign-in. The credential row is created with a random password that is
// never disclosed, so every account has a credential and password login
// stays closed until the user sets one through a reset.
func (s *Service) createFederatedAccount(ctx context.Context, email, displayName, provider, providerAccountID string) (*Account, error) {
	randomPassword, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	passwordHash, err := s.hasher.Hash(randomPassword)
	if err != nil {
		return nil, err
	}
	encryptedName, err := s.codec.Encrypt(strings.TrimSpace(displayName))
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:                uuid.NewString(),
		Email:             email,
		Name:              encryptedName,
		Role:              RoleUser,
		Active:            true,
		EmailVerified:     true,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		CreatedAt:         time.Now(),
	}
	cred := &Credential{
		AccountID:    account.ID,
		PasswordHash: passwordHash,
	}

	if err := s.store.CreateAccountWithCredential(ctx, account, cred); err != nil {
		return nil, err
	}

	s.seedDefaults(ctx, account.ID)
	s.emitAudit(ctx, auditActionFederatedLogin, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"stage":    "account_created",
			"provider": provider,
		}
	})
	return account, nil
}

// repointProvider reconciles an existing account with the asserting provider
// identity, updating only what changed.
func (s *Service) repointProvider(ctx context.Context, account *Account, provider, providerAccountID string) error {
	if account.Provider == provider && account.ProviderAccountID == providerAccountID {
		return nil
	}

	previous := account.Provider
	if err := s.store.UpdateAccount(ctx, account.ID, AccountUpdate{
		Provider:          &provider,
		ProviderAccountID: &providerAccountID,
	}); err != nil {
		return err
	}
	account.Provider = provider
	account.ProviderAccountID = providerAccountID

	s.emitAudit(ctx, auditActionFederatedLogin, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"stage":             "provider_repointed",
			"previous_provider": previous,
			"provider":          provider,
		}
	})
	return nil
}
