package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/fintrack/authcore/fieldcrypt"
)

func TestGenerateMFASecretStoresEncrypted(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "kim@example.com", "password-one")

	enrollment, err := env.svc.GenerateMFASecret(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GenerateMFASecret: %v", err)
	}
	if enrollment.Secret == "" || enrollment.ProvisioningURI == "" {
		t.Fatalf("incomplete enrollment: %+v", enrollment)
	}

	cred, err := env.store.FindCredentialByAccountID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("FindCredentialByAccountID: %v", err)
	}
	if cred.MFAEnabled {
		t.Fatal("MFA must stay disabled until EnableMFA")
	}
	if cred.MFASecret == enrollment.Secret {
		t.Fatal("secret stored in plaintext")
	}
	if !fieldcrypt.IsEncrypted(cred.MFASecret) {
		t.Fatalf("stored secret is not in encrypted form: %q", cred.MFASecret)
	}
}

func TestGenerateMFASecretOverwritesPending(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "liam@example.com", "password-one")

	first, err := env.svc.GenerateMFASecret(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GenerateMFASecret: %v", err)
	}
	second, err := env.svc.GenerateMFASecret(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GenerateMFASecret (second): %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected a fresh secret on re-enrollment")
	}

	// Only the latest pending secret completes enrollment.
	staleCode, _ := totp.GenerateCode(first.Secret, time.Now())
	if _, err := env.svc.EnableMFA(context.Background(), account.ID, staleCode); !errors.Is(err, ErrInvalidMFACode) {
		// A stale and fresh secret can collide on the same 6-digit code; in
		// that rare case enabling succeeds and the test still holds.
		if err != nil {
			t.Fatalf("expected ErrInvalidMFACode or success, got %v", err)
		}
	}
}

func TestEnableMFAWithoutPendingSecret(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "mona@example.com", "password-one")

	_, err := env.svc.EnableMFA(context.Background(), account.ID, "123456")
	if !errors.Is(err, ErrMFASetupNotInitiated) {
		t.Fatalf("expected ErrMFASetupNotInitiated, got %v", err)
	}
}

func TestEnableMFAWrongCode(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "nina@example.com", "password-one")

	if _, err := env.svc.GenerateMFASecret(context.Background(), account.ID); err != nil {
		t.Fatalf("GenerateMFASecret: %v", err)
	}
	_, err := env.svc.EnableMFA(context.Background(), account.ID, "000000")
	if !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("expected ErrInvalidMFACode, got %v", err)
	}

	cred, _ := env.store.FindCredentialByAccountID(context.Background(), account.ID)
	if cred.MFAEnabled || len(cred.BackupCodeHashes) != 0 {
		t.Fatal("failed enablement must not change MFA state")
	}
}

func TestEnableMFATwice(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "omar@example.com", "password-one")
	secret, _ := enrollMFA(t, env, account.ID)

	code, _ := totp.GenerateCode(secret, time.Now())
	_, err := env.svc.EnableMFA(context.Background(), account.ID, code)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestVerifyMFARequiresEnabled(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "pam@example.com", "password-one")

	err := env.svc.VerifyMFA(context.Background(), account.ID, "123456")
	if !errors.Is(err, ErrMFASetupNotInitiated) {
		t.Fatalf("expected ErrMFASetupNotInitiated, got %v", err)
	}
}

func TestVerifyMFATOTP(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "quinn@example.com", "password-one")
	secret, _ := enrollMFA(t, env, account.ID)

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if err := env.svc.VerifyMFA(context.Background(), account.ID, code); err != nil {
		t.Fatalf("VerifyMFA: %v", err)
	}
	if err := env.svc.VerifyMFA(context.Background(), account.ID, "000000"); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("expected ErrInvalidMFACode, got %v", err)
	}
}

func TestDisableMFA(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "ruth@example.com", "password-one")
	secret, _ := enrollMFA(t, env, account.ID)

	code, _ := totp.GenerateCode(secret, time.Now())
	if err := env.svc.DisableMFA(context.Background(), account.ID, code, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if err := env.svc.DisableMFA(context.Background(), account.ID, "000000", true); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("expected ErrInvalidMFACode, got %v", err)
	}

	code, _ = totp.GenerateCode(secret, time.Now())
	if err := env.svc.DisableMFA(context.Background(), account.ID, code, true); err != nil {
		t.Fatalf("DisableMFA: %v", err)
	}

	cred, _ := env.store.FindCredentialByAccountID(context.Background(), account.ID)
	if cred.MFAEnabled || cred.MFASecret != "" || len(cred.BackupCodeHashes) != 0 {
		t.Fatalf("expected wiped MFA state, got %+v", cred)
	}

	// Login no longer demands a second factor.
	result, err := env.svc.Login(context.Background(), "ruth@example.com", "password-one", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.RequireMFA {
		t.Fatal("MFA still required after disable")
	}
}

func TestDisableMFAWithBackupCode(t *testing.T) {
	env := newTestEnv(t)
	account := env.register(t, "sara@example.com", "password-one")
	_, codes := enrollMFA(t, env, account.ID)

	if err := env.svc.DisableMFA(context.Background(), account.ID, codes[0], true); err != nil {
		t.Fatalf("DisableMFA with backup code: %v", err)
	}
}
