package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Encryption.Secret = "test-field-encryption-secret"
	cfg.Token.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	// Minimum Argon2id cost keeps the suite fast.
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

type testEnv struct {
	svc   *Service
	store *memStore
	sink  *ChannelSink
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := newMemStore()
	sink := NewChannelSink(64)
	svc, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, store: store, sink: sink}
}

func (e *testEnv) register(t *testing.T, email, password string) *PublicAccount {
	t.Helper()
	account, err := e.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Name:     "Test User",
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return account
}

// recordingNotifier captures outbound mail so tests can read tokens back.
type recordingNotifier struct {
	mu           sync.Mutex
	resetTokens  []string
	verifyTokens []string
	setupSecrets []string
	fail         bool
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, _ string, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errSMTPDown
	}
	n.resetTokens = append(n.resetTokens, token)
	return nil
}

func (n *recordingNotifier) SendMFASetupEmail(_ context.Context, _ string, _ string, secret string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errSMTPDown
	}
	n.setupSecrets = append(n.setupSecrets, secret)
	return nil
}

func (n *recordingNotifier) SendEmailVerificationLink(_ context.Context, _ string, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errSMTPDown
	}
	n.verifyTokens = append(n.verifyTokens, token)
	return nil
}

func (n *recordingNotifier) lastResetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resetTokens) == 0 {
		return ""
	}
	return n.resetTokens[len(n.resetTokens)-1]
}

func (n *recordingNotifier) lastVerifyToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifyTokens) == 0 {
		return ""
	}
	return n.verifyTokens[len(n.verifyTokens)-1]
}

var errSMTPDown = errFixed("smtp down")

type errFixed string

func (e errFixed) Error() string { return string(e) }

// drainAudit collects the audit events the asynchronous dispatcher has
// delivered, waiting briefly for stragglers.
func drainAudit(sink *ChannelSink) []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-time.After(200 * time.Millisecond):
			return events
		}
	}
}
