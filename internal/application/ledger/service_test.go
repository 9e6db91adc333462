package ledger

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

func setupLedger(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.MatchRecord{}))
	return &Service{DB: db}, db
}

func seedPair(t *testing.T, db *gorm.DB) (*domain.Listing, *domain.Listing) {
	t.Helper()
	now := time.Now().UTC()
	supply := &domain.Listing{
		OwnerID: uuid.New(), Direction: domain.DirectionSupply,
		Title: "offer", Description: "d", Status: domain.ListingActive,
		CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	demand := &domain.Listing{
		OwnerID: uuid.New(), Direction: domain.DirectionDemand,
		Title: "request", Description: "d", Status: domain.ListingActive,
		CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(supply).Error)
	require.NoError(t, db.Create(demand).Error)
	return supply, demand
}

func TestCreate_PendingRecord(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)

	record, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPending, record.Status)
	assert.Equal(t, supply.ID, record.SupplyListingID)
	assert.Equal(t, demand.ID, record.DemandListingID)
	assert.Equal(t, 0.8, record.Score)
	assert.Equal(t, 0.9, record.VectorSimilarity)
}

func TestCreate_Validation(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)

	// swapped directions
	_, err := svc.Create(context.Background(), demand.ID, supply.ID, 0.8, 0.9)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// unknown listing
	_, err = svc.Create(context.Background(), uuid.New(), demand.ID, 0.8, 0.9)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// score outside [0, 1]
	_, err = svc.Create(context.Background(), supply.ID, demand.ID, 1.2, 0.9)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Create(context.Background(), supply.ID, demand.ID, -0.1, 0.9)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_SameOwnerRejected(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	require.NoError(t, db.Model(&domain.Listing{}).
		Where("id = ?", demand.ID).
		Update("owner_id", supply.OwnerID).Error)

	_, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_IdempotentPerPair(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)

	first, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.5, 0.6)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.8, second.Score)

	var count int64
	require.NoError(t, db.Model(&domain.MatchRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAccept_PromotesListings(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	record, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)

	accepted, err := svc.Accept(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchAccepted, accepted.Status)

	for _, id := range []uuid.UUID{supply.ID, demand.ID} {
		var listing domain.Listing
		require.NoError(t, db.First(&listing, "id = ?", id).Error)
		assert.Equal(t, domain.ListingMatched, listing.Status)
	}
}

func TestAccept_TerminalRecordsStayPut(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	record, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), record.ID)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), record.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRejected, got.Status)

	// rejection leaves both listings active
	var listing domain.Listing
	require.NoError(t, db.First(&listing, "id = ?", supply.ID).Error)
	assert.Equal(t, domain.ListingActive, listing.Status)
}

func TestAccept_DoubleAccept(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	record, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), record.ID)
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), record.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_UnknownRecord(t *testing.T) {
	svc, _ := setupLedger(t)
	_, err := svc.Accept(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Reject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMatchesForListing_ResolvesCounterpart(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	supply2, _ := seedPair(t, db)

	low, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.4, 0.5)
	require.NoError(t, err)
	high, err := svc.Create(context.Background(), supply2.ID, demand.ID, 0.9, 0.95)
	require.NoError(t, err)

	views, err := svc.MatchesForListing(context.Background(), demand.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// score descending, counterpart is the supply side
	assert.Equal(t, high.ID, views[0].MatchID)
	require.NotNil(t, views[0].Counterpart)
	assert.Equal(t, supply2.ID, views[0].Counterpart.ID)
	assert.Equal(t, low.ID, views[1].MatchID)
	require.NotNil(t, views[1].Counterpart)
	assert.Equal(t, supply.ID, views[1].Counterpart.ID)

	// supply side sees the demand as counterpart
	views, err = svc.MatchesForListing(context.Background(), supply.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, demand.ID, views[0].Counterpart.ID)
}

func TestMatchesForListing_MissingCounterpartKept(t *testing.T) {
	svc, db := setupLedger(t)
	supply, demand := seedPair(t, db)
	record, err := svc.Create(context.Background(), supply.ID, demand.ID, 0.8, 0.9)
	require.NoError(t, err)

	require.NoError(t, db.Delete(&domain.Listing{}, "id = ?", supply.ID).Error)

	views, err := svc.MatchesForListing(context.Background(), demand.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, record.ID, views[0].MatchID)
	assert.Nil(t, views[0].Counterpart)
}
