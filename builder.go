package authcore

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fintrack/authcore/fieldcrypt"
	"github.com/fintrack/authcore/password"
	"github.com/fintrack/authcore/token"
)

// Builder assembles a Service. It is single-use: Build consumes it.
type Builder struct {
	config Config
	redis  *redis.Client

	store     Store
	notifier  Notifier
	seeder    Seeder
	auditSink AuditSink

	built bool
}

// New returns a Builder pre-loaded with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecrets sets the two process-wide secrets without replacing the rest of
// the default configuration.
func (b *Builder) WithSecrets(encryptionSecret string, signingSecret []byte) *Builder {
	b.config.Encryption.Secret = encryptionSecret
	b.config.Token.SigningSecret = append([]byte(nil), signingSecret...)
	return b
}

// WithStore sets the persistence implementation. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the outbound email implementation. Optional; defaults to
// NoOpNotifier.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithSeeder sets the default-data seeder invoked on account creation paths.
// Optional; defaults to NoOpSeeder.
func (b *Builder) WithSeeder(s Seeder) *Builder {
	b.seeder = s
	return b
}

// WithAuditSink sets the audit destination. Optional; defaults to NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRedis enables the single-use challenge replay guard. Optional: without
// it, challenge tokens remain purely stateless and replayable within their
// five-minute window.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// Build validates configuration and dependencies and returns the Service.
// Configuration problems are fatal by contract: a process must not serve
// traffic without its encryption and signing secrets.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrConfiguration)
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfiguration)
	}

	codec, err := fieldcrypt.New(cfg.Encryption.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	issuer, err := token.NewIssuer(token.Config{
		SigningSecret: cfg.Token.SigningSecret,
		Issuer:        cfg.Token.Issuer,
		SessionTTL:    cfg.Token.SessionTTL,
		RememberMeTTL: cfg.Token.RememberMeTTL,
		ChallengeTTL:  cfg.Token.ChallengeTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	svc := &Service{
		config:   cfg,
		store:    b.store,
		notifier: b.notifier,
		seeder:   b.seeder,
		codec:    codec,
		hasher:   hasher,
		tokens:   issuer,
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
	}
	if svc.notifier == nil {
		svc.notifier = NoOpNotifier{}
	}
	if svc.seeder == nil {
		svc.seeder = NoOpSeeder{}
	}
	if b.redis != nil {
		svc.replay = newChallengeReplayGuard(b.redis, cfg.Token.ChallengeTTL)
	}

	b.built = true

	return svc, nil
}
