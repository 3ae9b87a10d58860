package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/fintrack/authcore/internal"
	"github.com/fintrack/authcore/token"
)

// Login authenticates an email/password pair. The outcome is one of four
// shapes: ErrAccountLocked, ErrInvalidCredentials, a challenge result with
// RequireMFA set, or a full session result. Callers never learn whether the
// email exists or which factor failed.
//
// Lockout bookkeeping is applied on the store before the error is returned,
// so a denied attempt always counts even if the caller abandons the request.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	account, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil || account == nil || account.Deleted || !account.Active {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditActionLogin, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "unknown_account",
				"email":  email,
			}
		})
		return nil, ErrInvalidCredentials
	}

	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditActionLogin, false, account.ID, err, nil)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if cred.LockedUntil != nil && cred.LockedUntil.After(now) {
		s.metricInc(MetricLoginLocked)
		s.emitAudit(ctx, auditActionLogin, false, account.ID, ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"reason":       "locked",
				"locked_until": cred.LockedUntil.Format(time.RFC3339),
			}
		})
		return nil, ErrAccountLocked
	}

	// A federated-only account has no usable password; it fails the same way
	// a wrong password does.
	match := false
	if cred.PasswordHash != "" {
		match, err = s.hasher.Verify(password, cred.PasswordHash)
		if err != nil {
			match = false
		}
	}
	if !match {
		locked := s.recordFailedAttempt(ctx, cred, now)
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditActionLogin, false, account.ID, ErrInvalidCredentials, func() map[string]string {
			d := map[string]string{"reason": "password_mismatch"}
			if locked {
				d["lockout_triggered"] = "true"
			}
			return d
		})
		return nil, ErrInvalidCredentials
	}

	if cred.FailedLoginAttempts > 0 || cred.LockedUntil != nil {
		zero := 0
		_ = s.store.UpdateCredential(ctx, account.ID, CredentialUpdate{
			FailedLoginAttempts: &zero,
			ClearLockout:        true,
		})
	}

	if cred.MFAEnabled {
		challenge, tokenID, err := s.tokens.IssueChallenge(account.ID, account.Email, rememberMe)
		if err != nil {
			return nil, err
		}
		if s.replay != nil {
			if err := s.replay.Register(ctx, tokenID); err != nil {
				return nil, err
			}
		}
		s.metricInc(MetricMFARequired)
		s.emitAudit(ctx, auditActionLogin, true, account.ID, nil, func() map[string]string {
			return map[string]string{"stage": "mfa_challenge_issued"}
		})
		return &LoginResult{RequireMFA: true, ChallengeToken: challenge}, nil
	}

	return s.finishLogin(ctx, auditActionLogin, account, rememberMe)
}

// CompleteLoginWithMFA exchanges a challenge token and a one-time code for a
// session. Expired challenges are reported distinctly so callers can send the
// user back to the password step instead of asking for another code.
func (s *Service) CompleteLoginWithMFA(ctx context.Context, challengeToken, code string) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	claims, err := s.tokens.Verify(challengeToken)
	if err != nil {
		mapped := ErrInvalidChallenge
		if errors.Is(err, token.ErrExpired) {
			mapped = ErrChallengeExpired
		}
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionLoginMFA, false, "", mapped, func() map[string]string {
			return map[string]string{"reason": "challenge_rejected"}
		})
		return nil, mapped
	}
	if !claims.Challenge {
		// A session token presented as a challenge. Reject before touching
		// any credential state.
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionLoginMFA, false, claims.AccountID(), ErrInvalidChallenge, func() map[string]string {
			return map[string]string{"reason": "missing_challenge_marker"}
		})
		return nil, ErrInvalidChallenge
	}

	account, err := s.store.FindAccountByID(ctx, claims.AccountID())
	if err != nil || account == nil || account.Deleted || !account.Active {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionLoginMFA, false, claims.AccountID(), ErrInvalidChallenge, nil)
		return nil, ErrInvalidChallenge
	}

	cred, err := s.store.FindCredentialByAccountID(ctx, account.ID)
	if err != nil || !cred.MFAEnabled {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionLoginMFA, false, account.ID, ErrInvalidChallenge, nil)
		return nil, ErrInvalidChallenge
	}

	usedBackup, err := s.checkMFACode(ctx, cred, code)
	if err != nil {
		s.metricInc(MetricMFAFailure)
		s.emitAudit(ctx, auditActionLoginMFA, false, account.ID, err, func() map[string]string {
			return map[string]string{"reason": "code_rejected"}
		})
		return nil, err
	}

	// Burn the challenge only after the code verified, so a typo does not
	// force the user back through the password step. DEL is atomic, so two
	// racing completions still yield one session.
	if s.replay != nil {
		fresh, err := s.replay.Consume(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			s.metricInc(MetricMFAFailure)
			s.emitAudit(ctx, auditActionLoginMFA, false, account.ID, ErrInvalidChallenge, func() map[string]string {
				return map[string]string{"reason": "challenge_replayed"}
			})
			return nil, ErrInvalidChallenge
		}
	}

	s.metricInc(MetricMFASuccess)
	if usedBackup {
		s.metricInc(MetricBackupCodeUsed)
	}
	return s.finishLogin(ctx, auditActionLoginMFA, account, claims.RememberMe)
}

// finishLogin stamps last-login, issues the session token, and emits the
// success audit event shared by the password, MFA, and federated paths.
func (s *Service) finishLogin(ctx context.Context, action string, account *Account, rememberMe bool) (*LoginResult, error) {
	sessionToken, err := s.tokens.IssueSession(account.ID, account.Email, string(account.Role), rememberMe)
	if err != nil {
		return nil, err
	}

	s.stampLastLogin(ctx, account.ID)
	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, action, true, account.ID, nil, func() map[string]string {
		return map[string]string{"remember_me": boolString(rememberMe)}
	})

	return &LoginResult{
		Token:   sessionToken,
		Account: s.publicAccount(account),
	}, nil
}

// recordFailedAttempt applies one failure to the account's tally and arms the
// lockout once the threshold is reached. The increment itself runs inside the
// store so two concurrent failures both count; the count decision here is
// made from the store's returned tally, never from state read before the
// (slow) password verification. Reports whether this attempt triggered a
// lockout.
func (s *Service) recordFailedAttempt(ctx context.Context, cred *Credential, now time.Time) bool {
	attempts, err := s.store.IncrementFailedAttempts(ctx, cred.AccountID, now, s.config.Lockout.Window)
	if err != nil || attempts < s.config.Lockout.MaxFailedAttempts {
		return false
	}

	// Arming the lockout is safe to race: concurrent attempts past the
	// threshold each write a full window.
	until := now.Add(s.config.Lockout.Window)
	_ = s.store.UpdateCredential(ctx, cred.AccountID, CredentialUpdate{LockedUntil: &until})
	return true
}

// checkMFACode validates a one-time code against the TOTP secret and, when
// that fails, against the stored backup codes. Reports whether a backup code
// was consumed. Any failure collapses to ErrInvalidMFACode.
func (s *Service) checkMFACode(ctx context.Context, cred *Credential, code string) (usedBackup bool, err error) {
	if code == "" {
		return false, ErrInvalidMFACode
	}

	secret, err := s.codec.Decrypt(cred.MFASecret)
	if err == nil && secret != "" && totp.Validate(code, secret) {
		return false, nil
	}

	if s.consumeBackupCode(ctx, cred, code) {
		return true, nil
	}
	return false, ErrInvalidMFACode
}

// consumeBackupCode matches the submitted code against the stored hashes and
// atomically removes the first match. Verification happens here because the
// store cannot compare against a slow hash; removal happens in the store so
// two concurrent uses of one code see exactly one success.
func (s *Service) consumeBackupCode(ctx context.Context, cred *Credential, code string) bool {
	canonical := internal.CanonicalizeBackupCode(code)
	if canonical == "" {
		return false
	}

	for _, hash := range cred.BackupCodeHashes {
		match, err := s.hasher.Verify(canonical, hash)
		if err != nil || !match {
			continue
		}
		ok, err := s.store.ConsumeBackupCode(ctx, cred.AccountID, hash)
		if err == nil && ok {
			return true
		}
		// Matched but already consumed by a concurrent use. No other hash
		// can match the same code, so the attempt fails.
		s.metricInc(MetricBackupCodeFailed)
		return false
	}

	s.metricInc(MetricBackupCodeFailed)
	return false
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
