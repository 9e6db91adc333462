package matching

import (
	"testing"
	"time"

	"broker-backend/internal/config"
	"broker-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		TopK:             10,
		Threshold:        0.3,
		MaxRecords:       5,
		WeightSimilarity: 0.6,
		WeightTags:       0.2,
		WeightCategory:   0.1,
		WeightFreshness:  0.1,
		FreshnessWindow:  30 * 24 * time.Hour,
	}
}

func TestCompositeScore_WorkedExample(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &domain.Listing{
		Category: "software",
		Tags:     domain.TagList{"python", "backend"},
	}
	candidate := &domain.Listing{
		Category:  "software",
		Tags:      domain.TagList{"python", "api"},
		CreatedAt: now.Add(-24 * time.Hour),
	}

	// 0.6*0.9 + 0.2*(1/3) + 0.1 + 0.1*(29/30)
	score := CompositeScore(testMatchingConfig(), source, candidate, 0.9, now)
	assert.InDelta(t, 0.54+0.2/3+0.1+0.1*29/30, score, 1e-9)
}

func TestCompositeScore_NoOverlapNoCategory(t *testing.T) {
	now := time.Now().UTC()
	source := &domain.Listing{Category: "software", Tags: domain.TagList{"go"}}
	candidate := &domain.Listing{Category: "hardware", Tags: domain.TagList{"rust"}, CreatedAt: now}

	score := CompositeScore(testMatchingConfig(), source, candidate, 0.5, now)
	assert.InDelta(t, 0.6*0.5+0.1, score, 1e-9)
}

func TestCompositeScore_Clamped(t *testing.T) {
	now := time.Now().UTC()
	cfg := testMatchingConfig()
	cfg.WeightSimilarity = 2
	source := &domain.Listing{}
	candidate := &domain.Listing{CreatedAt: now}

	assert.Equal(t, 1.0, CompositeScore(cfg, source, candidate, 1, now))
	assert.Equal(t, 0.0, CompositeScore(cfg, source, candidate, -1, now))
}

func TestTagJaccard(t *testing.T) {
	assert.Equal(t, 0.0, TagJaccard(nil, domain.TagList{"a"}))
	assert.Equal(t, 0.0, TagJaccard(domain.TagList{"a"}, nil))
	assert.Equal(t, 1.0, TagJaccard(domain.TagList{"Go", "api"}, domain.TagList{"go", "API"}))
	assert.InDelta(t, 1.0/3, TagJaccard(domain.TagList{"python", "backend"}, domain.TagList{"python", "api"}), 1e-9)
	// duplicates collapse into the set
	assert.Equal(t, 1.0, TagJaccard(domain.TagList{"go", "go"}, domain.TagList{"go"}))
}

func TestFreshness(t *testing.T) {
	now := time.Now().UTC()
	window := 30 * 24 * time.Hour

	assert.Equal(t, 1.0, Freshness(now, now, window))
	assert.Equal(t, 1.0, Freshness(now.Add(time.Hour), now, window))
	assert.InDelta(t, 0.5, Freshness(now.Add(-15*24*time.Hour), now, window), 1e-9)
	assert.Equal(t, 0.0, Freshness(now.Add(-31*24*time.Hour), now, window))
}
