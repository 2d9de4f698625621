package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"posledger/internal/core/id"
	"posledger/internal/domain/promo"
	"posledger/pkg/logger"
)

const promoKeyPrefix = "posledger:promo:"

// setIfNewer stores the entry unless the hash already holds an equal or
// newer version. KEYS[1] is the entry key; ARGV is version, payload, TTL ms.
var setIfNewer = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "data", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// PromoCache implements promo.Cache over Redis. Each entry is a hash of
// the row version and its JSON, expiring after a TTL. Redis failures
// degrade to cache misses and are logged.
type PromoCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ promo.Cache = (*PromoCache)(nil)

// NewPromoCache creates a promo cache with the given entry TTL.
func NewPromoCache(client *redis.Client, ttl time.Duration) *PromoCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PromoCache{client: client, ttl: ttl}
}

func promoKey(codeID id.ID) string {
	return promoKeyPrefix + codeID.String()
}

// Get returns the cached code.
func (c *PromoCache) Get(ctx context.Context, codeID id.ID) (*promo.Code, bool) {
	val, err := c.client.HGet(ctx, promoKey(codeID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn(ctx, "promo cache get failed", "promo_code_id", codeID, "error", err)
		return nil, false
	}

	code, err := decodePromo(val)
	if err != nil {
		logger.Warn(ctx, "promo cache entry corrupt", "promo_code_id", codeID, "error", err)
		c.Evict(ctx, codeID)
		return nil, false
	}
	return code, true
}

// Set stores the code unless a copy at the same or a later version is
// already cached.
func (c *PromoCache) Set(ctx context.Context, code *promo.Code) {
	if code == nil {
		return
	}
	payload, err := encodePromo(code)
	if err != nil {
		logger.Warn(ctx, "promo cache encode failed", "promo_code_id", code.ID, "error", err)
		return
	}
	stored, err := setIfNewer.Run(ctx, c.client, []string{promoKey(code.ID)},
		code.Version, payload, c.ttl.Milliseconds()).Int()
	if err != nil {
		logger.Warn(ctx, "promo cache set failed", "promo_code_id", code.ID, "error", err)
		return
	}
	if stored == 0 {
		logger.Debug(ctx, "promo cache kept newer entry", "promo_code_id", code.ID, "version", code.Version)
	}
}

// Evict drops the cached code.
func (c *PromoCache) Evict(ctx context.Context, codeID id.ID) {
	if err := c.client.Del(ctx, promoKey(codeID)).Err(); err != nil {
		logger.Warn(ctx, "promo cache evict failed", "promo_code_id", codeID, "error", err)
	}
}

// promoEntry carries the soft-delete mark the API encoding hides.
type promoEntry struct {
	*promo.Code
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func encodePromo(code *promo.Code) ([]byte, error) {
	return json.Marshal(promoEntry{Code: code, DeletedAt: code.DeletedAt})
}

func decodePromo(val []byte) (*promo.Code, error) {
	entry := promoEntry{Code: &promo.Code{}}
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, err
	}
	entry.Code.DeletedAt = entry.DeletedAt
	return entry.Code, nil
}
