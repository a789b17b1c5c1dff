package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-registration/internal/utils"
)

// blacklistPrefix namespaces revocation entries in Redis.
const blacklistPrefix = "blacklist:"

// BlacklistRepo stores revoked access tokens in Redis.  Entries are keyed by
// the SHA-256 of the token and carry a TTL equal to the token's remaining
// lifetime, so the list never grows beyond the set of still-valid tokens.
type BlacklistRepo struct {
	rdb *redis.Client
}

// NewBlacklistRepo returns a BlacklistRepo bound to the given Redis client.
// The client must be non-nil; without it logout cannot revoke tokens.
func NewBlacklistRepo(rdb *redis.Client) *BlacklistRepo {
	if rdb == nil {
		panic("nil redis client passed to NewBlacklistRepo")
	}
	return &BlacklistRepo{rdb: rdb}
}

// Revoke adds a token to the revocation list.  Revoking an already revoked
// token is not an error.  A non-positive ttl still gets a short floor so a
// token presented right at its expiry cannot slip through.
func (r *BlacklistRepo) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.rdb.Set(ctx, blacklistPrefix+utils.HashToken(token), "1", ttl).Err()
}

// IsRevoked reports whether a token is on the revocation list.
func (r *BlacklistRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, blacklistPrefix+utils.HashToken(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
