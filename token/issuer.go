package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid is returned for tokens that fail signature, format, or claim
	// checks. Callers should treat the token as garbage.
	ErrInvalid = errors.New("token: invalid")
	// ErrExpired is returned for well-formed, correctly signed tokens whose
	// expiry has passed. Callers can suggest re-authentication.
	ErrExpired = errors.New("token: expired")
)

// Config configures the Issuer. SigningSecret is injected at construction;
// the package holds no global key state.
type Config struct {
	SigningSecret []byte
	Issuer        string
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	ChallengeTTL  time.Duration
}

// Claims is the signed claim set shared by session and challenge tokens. The
// Challenge marker distinguishes the two: a session token can never be
// replayed as an MFA challenge and vice versa.
type Claims struct {
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	Challenge  bool   `json:"chg,omitempty"`
	RememberMe bool   `json:"rme,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Issuer signs and verifies session and MFA-challenge tokens with HS256.
type Issuer struct {
	config Config
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SigningSecret) < 32 {
		return nil, errors.New("token: signing secret must be at least 32 bytes")
	}
	if cfg.SessionTTL <= 0 || cfg.RememberMeTTL <= 0 || cfg.ChallengeTTL <= 0 {
		return nil, errors.New("token: lifetimes must be positive")
	}
	return &Issuer{config: cfg}, nil
}

// IssueSession signs a session token. The lifetime is SessionTTL, or
// RememberMeTTL when rememberMe is set.
func (i *Issuer) IssueSession(accountID, email, role string, rememberMe bool) (string, error) {
	ttl := i.config.SessionTTL
	if rememberMe {
		ttl = i.config.RememberMeTTL
	}

	return i.sign(Claims{
		Email: email,
		Role:  role,
	}, accountID, uuid.NewString(), ttl)
}

// IssueChallenge signs a short-lived MFA challenge token carrying the
// caller's rememberMe preference so the eventual session honors it. The
// returned token ID is random; an external single-use marker can key on it.
func (i *Issuer) IssueChallenge(accountID, email string, rememberMe bool) (token, tokenID string, err error) {
	tokenID = uuid.NewString()
	token, err = i.sign(Claims{
		Email:      email,
		Challenge:  true,
		RememberMe: rememberMe,
	}, accountID, tokenID, i.config.ChallengeTTL)
	return token, tokenID, err
}

func (i *Issuer) sign(claims Claims, accountID, tokenID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   accountID,
		Issuer:    i.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.SigningSecret)
}

// Verify checks signature and expiry and returns the decoded claims. Expired
// tokens yield ErrExpired; everything else that fails yields ErrInvalid.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.config.Issuer),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.config.SigningSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
