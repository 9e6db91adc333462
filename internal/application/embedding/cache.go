package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "embedding:"

// CachedProvider memoizes embeddings in Redis keyed by a digest of the text.
// Identical descriptions (re-posts, batch re-scans after backfill) skip the
// backend call. Redis trouble degrades to a direct call, never to a failure.
type CachedProvider struct {
	Inner Provider
	Rdb   *redis.Client
	TTL   time.Duration
}

func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedProvider{Inner: inner, Rdb: rdb, TTL: ttl}
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if b, err := p.Rdb.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(b, &vec); err == nil && len(vec) == p.Inner.Dimension() {
			return vec, nil
		}
	}

	vec, err := p.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(vec); err == nil {
		if err := p.Rdb.Set(ctx, key, b, p.TTL).Err(); err != nil {
			log.Warn().Err(err).Msg("Embedding cache write failed")
		}
	}
	return vec, nil
}

func (p *CachedProvider) Dimension() int {
	return p.Inner.Dimension()
}

func cacheKey(text string) string {
	digest := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(digest[:])
}

var _ Provider = (*CachedProvider)(nil)
