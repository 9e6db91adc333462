package catalog

import (
	"context"
	"testing"
	"time"

	"broker-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCatalog(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.MatchRecord{}))
	return &Service{DB: db}
}

func validInput() CreateListingInput {
	return CreateListingInput{
		OwnerID:     uuid.New(),
		Direction:   "supply",
		Category:    "services",
		Title:       "Python tutoring",
		Description: "Experienced tutor, evenings and weekends",
		PriceRange:  "200-300/hr",
		Tags:        []string{"python", "tutoring"},
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc := setupCatalog(t)

	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, listing.ID)
	assert.Equal(t, domain.ListingActive, listing.Status)
	assert.Equal(t, domain.DirectionSupply, listing.Direction)
	assert.False(t, listing.HasEmbedding())
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), listing.ExpiresAt, time.Minute)
}

func TestCreate_WithEmbeddingAndCustomExpiry(t *testing.T) {
	svc := setupCatalog(t)

	in := validInput()
	in.Embedding = []float32{0.1, 0.2, 0.3}
	in.ExpireDays = 7
	listing, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, listing.HasEmbedding())
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), listing.ExpiresAt, time.Minute)
}

func TestCreate_Validation(t *testing.T) {
	svc := setupCatalog(t)

	in := validInput()
	in.Direction = "sideways"
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = validInput()
	in.OwnerID = uuid.Nil
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = validInput()
	in.Title = "  "
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = validInput()
	in.Description = ""
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGet_NotFound(t *testing.T) {
	svc := setupCatalog(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByOwner_Filters(t *testing.T) {
	svc := setupCatalog(t)
	owner := uuid.New()

	in := validInput()
	in.OwnerID = owner
	supply, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	in = validInput()
	in.OwnerID = owner
	in.Direction = "demand"
	demand, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	// someone else's listing stays invisible
	_, err = svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	all, err := svc.ListByOwner(context.Background(), owner, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	d := domain.DirectionDemand
	demands, err := svc.ListByOwner(context.Background(), owner, &d, nil, 0)
	require.NoError(t, err)
	require.Len(t, demands, 1)
	assert.Equal(t, demand.ID, demands[0].ID)

	require.NoError(t, svc.SetStatus(context.Background(), supply.ID, domain.ListingClosed))
	active := domain.ListingActive
	activeOnly, err := svc.ListByOwner(context.Background(), owner, nil, &active, 0)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, demand.ID, activeOnly[0].ID)
}

func TestListActive_ExcludesExpired(t *testing.T) {
	svc := setupCatalog(t)

	fresh, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	expired, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, svc.DB.Model(&domain.Listing{}).
		Where("id = ?", expired.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	listings, err := svc.ListActive(context.Background(), domain.DirectionSupply, 0)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, fresh.ID, listings[0].ID)
}

func TestSetStatus_Transitions(t *testing.T) {
	svc := setupCatalog(t)
	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	// active is not a valid target
	assert.ErrorIs(t, svc.SetStatus(context.Background(), listing.ID, domain.ListingActive), domain.ErrInvalidTransition)

	require.NoError(t, svc.SetStatus(context.Background(), listing.ID, domain.ListingMatched))

	// terminal states stay put
	assert.ErrorIs(t, svc.SetStatus(context.Background(), listing.ID, domain.ListingClosed), domain.ErrInvalidTransition)

	got, err := svc.Get(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingMatched, got.Status)

	assert.ErrorIs(t, svc.SetStatus(context.Background(), uuid.New(), domain.ListingClosed), domain.ErrNotFound)
}

func TestSetEmbedding_Backfill(t *testing.T) {
	svc := setupCatalog(t)
	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.False(t, listing.HasEmbedding())

	require.NoError(t, svc.SetEmbedding(context.Background(), listing.ID, []float32{1, 2, 3}))

	got, err := svc.Get(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.HasEmbedding())

	assert.ErrorIs(t, svc.SetEmbedding(context.Background(), listing.ID, nil), domain.ErrValidation)
	assert.ErrorIs(t, svc.SetEmbedding(context.Background(), uuid.New(), []float32{1}), domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc := setupCatalog(t)
	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), listing.ID))
	_, err = svc.Get(context.Background(), listing.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), listing.ID), domain.ErrNotFound)
}

func TestCloseExpired(t *testing.T) {
	svc := setupCatalog(t)

	keep, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	gone, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, svc.DB.Model(&domain.Listing{}).
		Where("id = ?", gone.ID).
		Update("expires_at", time.Now().UTC().Add(-31*24*time.Hour)).Error)

	count, err := svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := svc.Get(context.Background(), gone.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingClosed, got.Status)

	got, err = svc.Get(context.Background(), keep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, got.Status)

	// second sweep finds nothing
	count, err = svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
