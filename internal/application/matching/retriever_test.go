package matching

import (
	"context"
	"testing"
	"time"

	"broker-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRetrieverDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.MatchRecord{}))
	return db
}

func seedListing(t *testing.T, db *gorm.DB, direction domain.Direction, vec []float32, mutate ...func(*domain.Listing)) *domain.Listing {
	t.Helper()
	now := time.Now().UTC()
	listing := &domain.Listing{
		OwnerID:     uuid.New(),
		Direction:   direction,
		Title:       "listing",
		Description: "description",
		Status:      domain.ListingActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(30 * 24 * time.Hour),
	}
	if vec != nil {
		v := pgvector.NewVector(vec)
		listing.Embedding = &v
	}
	for _, m := range mutate {
		m(listing)
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func TestScanRetriever_NotEmbedded(t *testing.T) {
	db := setupRetrieverDB(t)
	r := &ScanRetriever{DB: db}
	source := seedListing(t, db, domain.DirectionSupply, nil)

	_, err := r.Retrieve(context.Background(), source, 10, 0.3)
	assert.ErrorIs(t, err, domain.ErrNotEmbedded)
}

func TestScanRetriever_FiltersAndThreshold(t *testing.T) {
	db := setupRetrieverDB(t)
	r := &ScanRetriever{DB: db}

	source := seedListing(t, db, domain.DirectionDemand, []float32{1, 0, 0})

	// retrievable: opposite direction, active, embedded, similar enough
	hit := seedListing(t, db, domain.DirectionSupply, []float32{1, 0.1, 0})
	// same direction as the source
	seedListing(t, db, domain.DirectionDemand, []float32{1, 0, 0})
	// below the similarity floor (orthogonal)
	seedListing(t, db, domain.DirectionSupply, []float32{0, 1, 0})
	// closed
	seedListing(t, db, domain.DirectionSupply, []float32{1, 0, 0}, func(l *domain.Listing) {
		l.Status = domain.ListingClosed
	})
	// expired
	seedListing(t, db, domain.DirectionSupply, []float32{1, 0, 0}, func(l *domain.Listing) {
		l.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	})
	// no embedding
	seedListing(t, db, domain.DirectionSupply, nil)
	// same owner as the source
	seedListing(t, db, domain.DirectionSupply, []float32{1, 0, 0}, func(l *domain.Listing) {
		l.OwnerID = source.OwnerID
	})

	candidates, err := r.Retrieve(context.Background(), source, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, hit.ID, candidates[0].Listing.ID)
	assert.Greater(t, candidates[0].Similarity, 0.9)
}

func TestScanRetriever_TopKAndOrdering(t *testing.T) {
	db := setupRetrieverDB(t)
	r := &ScanRetriever{DB: db}
	source := seedListing(t, db, domain.DirectionSupply, []float32{1, 0})

	far := seedListing(t, db, domain.DirectionDemand, []float32{1, 1})
	near := seedListing(t, db, domain.DirectionDemand, []float32{1, 0.1})
	exact := seedListing(t, db, domain.DirectionDemand, []float32{1, 0})

	candidates, err := r.Retrieve(context.Background(), source, 2, 0.3)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, exact.ID, candidates[0].Listing.ID)
	assert.Equal(t, near.ID, candidates[1].Listing.ID)
	_ = far
}

func TestScanRetriever_TieBrokenByRecency(t *testing.T) {
	db := setupRetrieverDB(t)
	r := &ScanRetriever{DB: db}
	source := seedListing(t, db, domain.DirectionSupply, []float32{1, 0})

	older := seedListing(t, db, domain.DirectionDemand, []float32{1, 0}, func(l *domain.Listing) {
		l.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	})
	newer := seedListing(t, db, domain.DirectionDemand, []float32{1, 0})

	candidates, err := r.Retrieve(context.Background(), source, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, newer.ID, candidates[0].Listing.ID)
	assert.Equal(t, older.ID, candidates[1].Listing.ID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
