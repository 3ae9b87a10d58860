package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/fintrack/authcore/fieldcrypt"
	"github.com/fintrack/authcore/password"
	"github.com/fintrack/authcore/token"
)

// Service orchestrates the credential and identity flows over the
// caller-supplied Store, Notifier, and Seeder. Instances are built once
// through [Builder.Build] and safe for concurrent use afterwards.
type Service struct {
	config   Config
	store    Store
	notifier Notifier
	seeder   Seeder
	codec    *fieldcrypt.Codec
	hasher   *password.Hasher
	tokens   *token.Issuer
	replay   *challengeReplayGuard
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close flushes and stops the audit dispatcher. It does not touch the Store.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil {
		return
	}
	s.metrics.Inc(id)
}

// emitAudit enqueues a security event. The details closure is only invoked
// when auditing is enabled, so hot paths pay nothing for disabled audit.
// Dispatch failures never abort the calling flow.
func (s *Service) emitAudit(
	ctx context.Context,
	action string,
	success bool,
	actorID string,
	cause error,
	details func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		Action:    action,
		Outcome:   auditOutcomeSuccess,
		ActorID:   actorID,
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if actorID == "" {
		event.ActorID = auditActorUnknown
	}
	if !success {
		event.Outcome = auditOutcomeFailure
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if details != nil {
		event.Details = details()
	}

	s.audit.Emit(ctx, event)
}

func (s *Service) ready() error {
	if s == nil || s.store == nil || s.hasher == nil || s.tokens == nil || s.codec == nil {
		return ErrNotReady
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) providerAllowed(provider string) bool {
	for _, p := range s.config.Federated.Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// publicAccount projects an Account for callers, decrypting the display name.
// A name that fails to decrypt is omitted rather than failing the flow.
func (s *Service) publicAccount(account *Account) PublicAccount {
	name := account.Name
	if fieldcrypt.IsEncrypted(name) {
		decrypted, err := s.codec.Decrypt(name)
		if err != nil {
			name = ""
		} else {
			name = decrypted
		}
	}

	return PublicAccount{
		ID:            account.ID,
		Email:         account.Email,
		Name:          name,
		Role:          account.Role,
		EmailVerified: account.EmailVerified,
		Provider:      account.Provider,
	}
}

func (s *Service) stampLastLogin(ctx context.Context, accountID string) {
	now := time.Now()
	// Best-effort: a stale last-login stamp must not fail an otherwise
	// successful login.
	_ = s.store.UpdateAccount(ctx, accountID, AccountUpdate{LastLoginAt: &now})
}

func (s *Service) notifyFailure(ctx context.Context, actorID, kind string, err error) {
	if err == nil {
		return
	}
	s.emitAudit(ctx, auditActionNotificationFailed, false, actorID, err, func() map[string]string {
		return map[string]string{
			"notification": kind,
		}
	})
}
