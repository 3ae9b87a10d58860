package authcore

import (
	"context"
	"time"

	"github.com/fintrack/authcore/internal"
)

// RequestPasswordReset issues a single-use reset token and mails it. The
// operation reports success whether or not the email matches an account, so
// callers cannot enumerate registered addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	account, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil || account == nil || account.Deleted || !account.Active {
		s.emitAudit(ctx, auditActionPasswordReset, false, "", ErrNotFound, func() map[string]string {
			return map[string]string{
				"stage": "request",
				"email": email,
			}
		})
		return nil
	}

	resetToken, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(s.config.PasswordReset.TokenTTL)
	if err := s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		ResetToken:          &resetToken,
		ResetTokenExpiresAt: &expiry,
	}); err != nil {
		return err
	}

	s.notifyFailure(ctx, account.ID, "password_reset",
		s.notifier.SendPasswordResetEmail(ctx, account.Email, resetToken))

	s.metricInc(MetricPasswordResetRequest)
	s.emitAudit(ctx, auditActionPasswordReset, true, account.ID, nil, func() map[string]string {
		return map[string]string{"stage": "request"}
	})
	return nil
}

// ResetPassword sets a new password for the credential holding the reset
// token. Unknown and expired tokens both map to ErrNotFound so the response
// does not reveal whether a token ever existed. A successful reset clears the
// token, clears any active lockout, and stamps the password change.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if resetToken == "" {
		return ErrNotFound
	}

	cred, err := s.store.FindCredentialByResetToken(ctx, resetToken)
	if err != nil || cred == nil {
		return ErrNotFound
	}

	now := time.Now()
	if cred.ResetTokenExpiresAt == nil || cred.ResetTokenExpiresAt.Before(now) {
		s.emitAudit(ctx, auditActionPasswordReset, false, cred.AccountID, ErrNotFound, func() map[string]string {
			return map[string]string{
				"stage":  "complete",
				"reason": "token_expired",
			}
		})
		return ErrNotFound
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	zero := 0
	none := ""
	zeroTime := time.Time{}
	if err := s.store.UpdateCredential(ctx, cred.AccountID, CredentialUpdate{
		PasswordHash:        &passwordHash,
		FailedLoginAttempts: &zero,
		ClearLockout:        true,
		ResetToken:          &none,
		ResetTokenExpiresAt: &zeroTime,
		PasswordChangedAt:   &now,
	}); err != nil {
		return err
	}

	s.metricInc(MetricPasswordResetSuccess)
	s.emitAudit(ctx, auditActionPasswordReset, true, cred.AccountID, nil, func() map[string]string {
		return map[string]string{"stage": "complete"}
	})
	return nil
}
