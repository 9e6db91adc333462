package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" Supply ")
	require.NoError(t, err)
	assert.Equal(t, DirectionSupply, d)

	d, err = ParseDirection("demand")
	require.NoError(t, err)
	assert.Equal(t, DirectionDemand, d)

	_, err = ParseDirection("both")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDirection("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionDemand, DirectionSupply.Opposite())
	assert.Equal(t, DirectionSupply, DirectionDemand.Opposite())
}

func TestParseMatchDecision(t *testing.T) {
	s, err := ParseMatchDecision("ACCEPTED")
	require.NoError(t, err)
	assert.Equal(t, MatchAccepted, s)

	_, err = ParseMatchDecision("pending")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTagListRoundTrip(t *testing.T) {
	tags := TagList{"Python", "backend"}
	v, err := tags.Value()
	require.NoError(t, err)

	var parsed TagList
	require.NoError(t, parsed.Scan(v))
	assert.Equal(t, tags, parsed)

	var empty TagList
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestTagListNormalized(t *testing.T) {
	set := TagList{"Go", " go ", "", "API"}.Normalized()
	assert.Len(t, set, 2)
	assert.Contains(t, set, "go")
	assert.Contains(t, set, "api")
}

func TestListingExpired(t *testing.T) {
	now := time.Now().UTC()
	l := Listing{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, l.Expired(now))
	l.ExpiresAt = now.Add(-time.Hour)
	assert.True(t, l.Expired(now))
	l.ExpiresAt = now
	assert.True(t, l.Expired(now))
}
