package authcore

import (
	"context"
	"strconv"

	"github.com/pquerna/otp/totp"

	"github.com/fintrack/authcore/internal"
)

// GenerateMFASecret starts TOTP enrollment for an account. The secret is
// stored encrypted with MFA still disabled; calling this again before
// EnableMFA overwrites the pending secret. The secret and provisioning URI
// are also mailed to the account so the user can finish enrollment from
// another device.
func (s *Service) GenerateMFASecret(ctx context.Context, accountID string) (*MFAEnrollment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.MFA.Issuer,
		AccountName: account.Email,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := s.codec.Encrypt(key.Secret())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		MFASecret: &encrypted,
	}); err != nil {
		return nil, err
	}

	s.notifyFailure(ctx, account.ID, "mfa_setup",
		s.notifier.SendMFASetupEmail(ctx, account.Email, key.URL(), key.Secret()))

	s.emitAudit(ctx, auditActionMFAEnroll, true, account.ID, nil, nil)

	return &MFAEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// EnableMFA completes enrollment: it validates a current code against the
// pending secret, flips MFA on, and returns the plaintext backup codes. This
// is the only time the codes exist in plaintext; afterwards only their hashes
// are stored and they cannot be retrieved again.
func (s *Service) EnableMFA(ctx context.Context, accountID, code string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if cred.MFAEnabled {
		return nil, ErrAlreadyExists
	}
	if cred.MFASecret == "" {
		return nil, ErrMFASetupNotInitiated
	}

	secret, err := s.codec.Decrypt(cred.MFASecret)
	if err != nil {
		return nil, err
	}
	if !totp.Validate(code, secret) {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionMFAEnable, false, account.ID, ErrInvalidMFACode, nil)
		return nil, ErrInvalidMFACode
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}

	enabled := true
	if err := s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		MFAEnabled:       &enabled,
		BackupCodeHashes: &hashes,
	}); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, auditActionMFAEnable, true, account.ID, nil, func() map[string]string {
		return map[string]string{"backup_codes": strconv.Itoa(len(codes))}
	})

	return codes, nil
}

// VerifyMFA checks a one-time code for an account with MFA enabled. TOTP is
// tried first, then the backup codes; a consumed backup code is gone for
// good.
func (s *Service) VerifyMFA(ctx context.Context, accountID, code string) error {
	if err := s.ready(); err != nil {
		return err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil {
		return err
	}
	if !cred.MFAEnabled {
		return ErrMFASetupNotInitiated
	}

	usedBackup, err := s.checkMFACode(ctx, cred, code)
	if err != nil {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionMFAVerify, false, account.ID, err, nil)
		return err
	}

	s.metricInc(MetricMFASuccess)
	if usedBackup {
		s.metricInc(MetricBackupCodeUsed)
	}
	s.emitAudit(ctx, auditActionMFAVerify, true, account.ID, nil, func() map[string]string {
		return map[string]string{"used_backup_code": boolString(usedBackup)}
	})
	return nil
}

// DisableMFA turns MFA off after an explicit confirmation and a valid TOTP or
// backup code, then wipes the secret and all remaining backup codes.
func (s *Service) DisableMFA(ctx context.Context, accountID, code string, confirm bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil {
		return err
	}
	if !cred.MFAEnabled {
		return ErrMFASetupNotInitiated
	}

	if _, err := s.checkMFACode(ctx, cred, code); err != nil {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionMFADisable, false, account.ID, err, nil)
		return err
	}

	disabled := false
	empty := ""
	noCodes := []string{}
	if err := s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		MFAEnabled:       &disabled,
		MFASecret:        &empty,
		BackupCodeHashes: &noCodes,
	}); err != nil {
		return err
	}

	s.emitAudit(ctx, auditActionMFADisable, true, account.ID, nil, nil)
	return nil
}

// newBackupCodes generates the configured number of fresh backup codes and
// their Argon2id hashes. Plaintext codes carry the display separator; hashes
// are computed over the canonical (separator-free) form.
func (s *Service) newBackupCodes() (codes, hashes []string, err error) {
	count := s.config.MFA.BackupCodeCount
	codes = make([]string, 0, count)
	hashes = make([]string, 0, count)

	for len(codes) < count {
		raw, err := internal.NewBackupCode(s.config.MFA.BackupCodeLength)
		if err != nil {
			return nil, nil, err
		}
		hash, err := s.hasher.Hash(raw)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, internal.FormatBackupCode(raw))
		hashes = append(hashes, hash)
	}

	return codes, hashes, nil
}

// activeAccount loads an account by ID and rejects deleted or deactivated
// ones with ErrNotFound.
func (s *Service) activeAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Deleted || !account.Active {
		return nil, ErrNotFound
	}
	return account, nil
}
