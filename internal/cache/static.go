package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

// DefaultTTL is the 24h TTL for static features, per spec §4.3.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "match:static:"

// StaticFeatureCache wraps a byte-oriented Cache with the engine's
// {T,G,Q,R}-keyed record and the degrade-to-miss-or-noop failure policy:
// a cache error is logged at debug level and never surfaced to the
// Ranker.
type StaticFeatureCache struct {
	backend Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// New wraps backend with the engine's static-feature semantics. A nil
// logger is replaced with a no-op logger.
func New(backend Cache, ttl time.Duration, logger *zap.Logger) *StaticFeatureCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StaticFeatureCache{backend: backend, ttl: ttl, logger: logger}
}

func key(lawyerID string) string { return keyPrefix + lawyerID }

// Get returns the cached static features for a lawyer. A miss (including
// a cache failure, degraded to a miss) returns ok=false with no error.
func (c *StaticFeatureCache) Get(ctx context.Context, lawyerID string) (litmatch.StaticFeatures, bool) {
	raw, ok, err := c.backend.Get(ctx, key(lawyerID))
	if err != nil {
		c.logger.Debug("static cache get failed, degrading to miss",
			zap.String("lawyer_id", lawyerID), zap.Error(err))
		return litmatch.StaticFeatures{}, false
	}
	if !ok {
		return litmatch.StaticFeatures{}, false
	}
	var sf litmatch.StaticFeatures
	if err := sonic.Unmarshal(raw, &sf); err != nil {
		c.logger.Debug("static cache record malformed, degrading to miss",
			zap.String("lawyer_id", lawyerID), zap.Error(err))
		return litmatch.StaticFeatures{}, false
	}
	return sf, true
}

// Put writes the static features for a lawyer with the configured TTL. A
// backend failure is logged and swallowed — ranking must still complete.
func (c *StaticFeatureCache) Put(ctx context.Context, lawyerID string, sf litmatch.StaticFeatures) {
	raw, err := sonic.Marshal(sf)
	if err != nil {
		c.logger.Debug("static cache encode failed", zap.String("lawyer_id", lawyerID), zap.Error(err))
		return
	}
	if err := c.backend.Set(ctx, key(lawyerID), raw, c.ttl); err != nil {
		c.logger.Debug("static cache put failed, degrading to noop",
			zap.String("lawyer_id", lawyerID), zap.Error(err))
	}
}

// Invalidate deletes the cached entry for a lawyer. Idempotent: deleting a
// missing key is not an error. Writers of lawyer-state (KPI sync, profile
// updates, review submission) must call this.
func (c *StaticFeatureCache) Invalidate(ctx context.Context, lawyerID string) error {
	if err := c.backend.Delete(ctx, key(lawyerID)); err != nil {
		c.logger.Debug("static cache invalidate failed", zap.String("lawyer_id", lawyerID), zap.Error(err))
		return litmatch.CacheUnavailable(err, "invalidate lawyer %s", lawyerID)
	}
	return nil
}
