package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testIssuerConfig() Config {
	return Config{
		SigningSecret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore-test",
		SessionTTL:    time.Hour,
		RememberMeTTL: 24 * time.Hour,
		ChallengeTTL:  5 * time.Minute,
	}
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testIssuerConfig())
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer
}

func TestNewIssuerValidation(t *testing.T) {
	cfg := testIssuerConfig()
	cfg.SigningSecret = []byte("too short")
	if _, err := NewIssuer(cfg); err == nil {
		t.Fatal("expected an error for a short signing secret")
	}

	cfg = testIssuerConfig()
	cfg.ChallengeTTL = 0
	if _, err := NewIssuer(cfg); err == nil {
		t.Fatal("expected an error for a zero challenge lifetime")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	signed, err := issuer.IssueSession("acct-1", "a@example.com", "user", false)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccountID() != "acct-1" || claims.Email != "a@example.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Challenge {
		t.Fatal("session token must not carry the challenge marker")
	}
}

func TestRememberMeExtendsLifetime(t *testing.T) {
	issuer := newTestIssuer(t)

	short, err := issuer.IssueSession("acct-1", "a@example.com", "user", false)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	long, err := issuer.IssueSession("acct-1", "a@example.com", "user", true)
	if err != nil {
		t.Fatalf("IssueSession (rememberMe): %v", err)
	}

	shortClaims, err := issuer.Verify(short)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	longClaims, err := issuer.Verify(long)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !longClaims.ExpiresAt.After(shortClaims.ExpiresAt.Time) {
		t.Fatal("remember-me session must outlive the default session")
	}
}

func TestChallengeCarriesMarkerAndID(t *testing.T) {
	issuer := newTestIssuer(t)

	signed, tokenID, err := issuer.IssueChallenge("acct-1", "a@example.com", true)
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}
	if tokenID == "" {
		t.Fatal("expected a token ID")
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !claims.Challenge {
		t.Fatal("expected the challenge marker")
	}
	if !claims.RememberMe {
		t.Fatal("expected the rememberMe claim")
	}
	if claims.ID != tokenID {
		t.Fatalf("claim ID %q does not match returned token ID %q", claims.ID, tokenID)
	}
}

func TestVerifyDistinguishesExpiredFromInvalid(t *testing.T) {
	cfg := testIssuerConfig()
	cfg.SessionTTL = time.Nanosecond
	issuer, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	signed, err := issuer.IssueSession("acct-1", "a@example.com", "user", false)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := issuer.Verify("garbage"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)

	otherCfg := testIssuerConfig()
	otherCfg.SigningSecret = []byte("ffffffffffffffffffffffffffffffff")
	other, err := NewIssuer(otherCfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	signed, err := other.IssueSession("acct-1", "a@example.com", "user", false)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	issuer := newTestIssuer(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    "authcore-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
