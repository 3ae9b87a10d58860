package authcore

import (
	"context"
	"time"

	"github.com/fintrack/authcore/internal"
)

// RequestEmailVerification issues a fresh verification token for an account
// whose email is still unverified and mails the link. Already-verified
// accounts are a no-op success.
func (s *Service) RequestEmailVerification(ctx context.Context, accountID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return nil
	}

	verifyToken, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(s.config.EmailVerification.TokenTTL)
	if err := s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
		VerifyToken:          &verifyToken,
		VerifyTokenExpiresAt: &expiry,
	}); err != nil {
		return err
	}

	s.notifyFailure(ctx, account.ID, "email_verification",
		s.notifier.SendEmailVerificationLink(ctx, account.Email, verifyToken))

	s.emitAudit(ctx, auditActionEmailVerification, true, account.ID, nil, func() map[string]string {
		return map[string]string{"stage": "request"}
	})
	return nil
}

// VerifyEmail marks an account's email verified given a valid verification
// token. Unknown and expired tokens both map to ErrNotFound.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if verifyToken == "" {
		return ErrNotFound
	}

	cred, err := s.store.FindCredentialByVerificationToken(ctx, verifyToken)
	if err != nil || cred == nil {
		return ErrNotFound
	}
	if cred.VerifyTokenExpiresAt == nil || cred.VerifyTokenExpiresAt.Before(time.Now()) {
		s.emitAudit(ctx, auditActionEmailVerification, false, cred.AccountID, ErrNotFound, func() map[string]string {
			return map[string]string{
				"stage":  "complete",
				"reason": "token_expired",
			}
		})
		return ErrNotFound
	}

	verified := true
	if err := s.store.UpdateAccount(ctx, cred.AccountID, AccountUpdate{
		EmailVerified: &verified,
	}); err != nil {
		return err
	}

	none := ""
	zeroTime := time.Time{}
	_ = s.store.UpdateCredential(ctx, cred.AccountID, CredentialUpdate{
		VerifyToken:          &none,
		VerifyTokenExpiresAt: &zeroTime,
	})

	s.metricInc(MetricEmailVerified)
	s.emitAudit(ctx, auditActionEmailVerification, true, cred.AccountID, nil, func() map[string]string {
		return map[string]string{"stage": "complete"}
	})
	return nil
}
