package matching

import (
	"time"

	"broker-backend/internal/config"
	"broker-backend/internal/domain"
)

// CompositeScore combines the retriever's vector similarity with tag overlap,
// category match and recency into one relevance score in [0, 1].
//
// Pure function: identical inputs, including now, always yield the same
// score, so tests can pin exact values.
func CompositeScore(cfg config.MatchingConfig, source, candidate *domain.Listing, similarity float64, now time.Time) float64 {
	score := cfg.WeightSimilarity * similarity
	score += cfg.WeightTags * TagJaccard(source.Tags, candidate.Tags)
	if categoryMatch(source.Category, candidate.Category) {
		score += cfg.WeightCategory
	}
	score += cfg.WeightFreshness * Freshness(candidate.CreatedAt, now, cfg.FreshnessWindow)
	return clamp01(score)
}

// TagJaccard is |A∩B| / |A∪B| over case-insensitive tag sets, 0 when either
// set is empty.
func TagJaccard(a, b domain.TagList) float64 {
	setA := a.Normalized()
	setB := b.Normalized()
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tag := range setA {
		if _, ok := setB[tag]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Freshness decays linearly from 1 at createdAt to 0 at createdAt+window,
// floored at 0 with no further decay.
func Freshness(createdAt, now time.Time, window time.Duration) float64 {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 1
	}
	fresh := 1 - float64(elapsed)/float64(window)
	if fresh < 0 {
		return 0
	}
	return fresh
}

// categoryMatch is exact string equality; empty categories never match.
func categoryMatch(a, b string) bool {
	return a != "" && a == b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
