package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeReplayKeyPrefix = "amc"

// challengeReplayGuard gives stateless challenge tokens single-use semantics:
// each issued challenge registers its token ID under the challenge TTL, and
// completion consumes the marker exactly once. Without the guard a challenge
// token is replayable until it expires, which the signed-claims design
// accepts as its baseline.
type challengeReplayGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func newChallengeReplayGuard(client *redis.Client, ttl time.Duration) *challengeReplayGuard {
	return &challengeReplayGuard{redis: client, ttl: ttl}
}

func (g *challengeReplayGuard) key(tokenID string) string {
	return challengeReplayKeyPrefix + ":" + tokenID
}

// Register records a freshly issued challenge. The marker outlives the token
// slightly so a token near expiry cannot sneak past a vanished marker.
func (g *challengeReplayGuard) Register(ctx context.Context, tokenID string) error {
	if err := g.redis.Set(ctx, g.key(tokenID), 1, g.ttl+30*time.Second).Err(); err != nil {
		return fmt.Errorf("challenge replay guard: %w", err)
	}
	return nil
}

// Consume removes the marker and reports whether it was still present. Two
// concurrent consumers of the same token see exactly one true, since DEL is
// atomic on the server.
func (g *challengeReplayGuard) Consume(ctx context.Context, tokenID string) (bool, error) {
	n, err := g.redis.Del(ctx, g.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("challenge replay guard: %w", err)
	}
	return n > 0, nil
}
