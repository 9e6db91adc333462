package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"broker-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// MatchView is the display row for a listing's matches: the record plus the
// counterpart listing resolved by lookup.
type MatchView struct {
	MatchID          uuid.UUID       `json:"match_id"`
	Counterpart      *domain.Listing `json:"counterpart_listing"`
	Score            float64         `json:"score"`
	VectorSimilarity float64         `json:"vector_similarity"`
	Status           domain.MatchStatus `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Create records a match proposal in pending status. The referenced listings
// must exist, carry supply and demand directions respectively, and belong to
// different owners; otherwise nothing is persisted.
//
// Creation is idempotent per (supply, demand) pair: the per-listing trigger
// and the batch re-scan may race, and the second insert returns the record
// the first one wrote.
func (s *Service) Create(ctx context.Context, supplyID, demandID uuid.UUID, score, similarity float64) (*domain.MatchRecord, error) {
	supply, err := s.findListing(ctx, supplyID)
	if err != nil {
		return nil, err
	}
	demand, err := s.findListing(ctx, demandID)
	if err != nil {
		return nil, err
	}
	if supply.Direction != domain.DirectionSupply {
		return nil, fmt.Errorf("%w: listing %s is not a supply listing", domain.ErrValidation, supplyID)
	}
	if demand.Direction != domain.DirectionDemand {
		return nil, fmt.Errorf("%w: listing %s is not a demand listing", domain.ErrValidation, demandID)
	}
	if supply.OwnerID == demand.OwnerID {
		return nil, fmt.Errorf("%w: cannot match two listings of the same owner", domain.ErrValidation)
	}
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: score must be within [0, 1]", domain.ErrValidation)
	}

	if existing, err := s.findPair(ctx, supplyID, demandID); err == nil {
		return existing, nil
	}

	record := &domain.MatchRecord{
		SupplyListingID:  supplyID,
		DemandListingID:  demandID,
		Score:            score,
		VectorSimilarity: similarity,
		Status:           domain.MatchPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(record).Error; err != nil {
		// Lost an insert race on the unique pair index; the winner's row is
		// the one we want.
		if existing, lookupErr := s.findPair(ctx, supplyID, demandID); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("Failed to create match record: %w", err)
	}
	log.Info().
		Str("match_id", record.ID.String()).
		Str("supply_listing_id", supplyID.String()).
		Str("demand_listing_id", demandID.String()).
		Float64("score", score).
		Msg("Match record created")
	return record, nil
}

// Get returns a match record by id or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, matchID uuid.UUID) (*domain.MatchRecord, error) {
	var record domain.MatchRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", matchID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Accept transitions a pending match to accepted and promotes both listings
// from active to matched. A second accept, or accepting a rejected record,
// fails with ErrInvalidTransition and changes nothing.
func (s *Service) Accept(ctx context.Context, matchID uuid.UUID) (*domain.MatchRecord, error) {
	record, err := s.transition(ctx, matchID, domain.MatchAccepted)
	if err != nil {
		return nil, err
	}
	// Listing promotion is best effort: a listing that already left active
	// (expired sweep, earlier accepted match) stays where it is.
	for _, id := range []uuid.UUID{record.SupplyListingID, record.DemandListingID} {
		res := s.DB.WithContext(ctx).
			Model(&domain.Listing{}).
			Where("id = ? AND status = ?", id, domain.ListingActive).
			Update("status", domain.ListingMatched)
		if res.Error != nil {
			log.Error().Err(res.Error).Str("listing_id", id.String()).Msg("Failed to promote listing to matched")
		}
	}
	return record, nil
}

// Reject transitions a pending match to rejected. Terminal records are left
// untouched and the call fails with ErrInvalidTransition.
func (s *Service) Reject(ctx context.Context, matchID uuid.UUID) (*domain.MatchRecord, error) {
	return s.transition(ctx, matchID, domain.MatchRejected)
}

// transition performs the pending-only state change as one conditional UPDATE.
func (s *Service) transition(ctx context.Context, matchID uuid.UUID, target domain.MatchStatus) (*domain.MatchRecord, error) {
	res := s.DB.WithContext(ctx).
		Model(&domain.MatchRecord{}).
		Where("id = ? AND status = ?", matchID, domain.MatchPending).
		Update("status", target)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, matchID); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidTransition
	}
	log.Info().Str("match_id", matchID.String()).Str("status", string(target)).Msg("Match status updated")
	return s.Get(ctx, matchID)
}

// ListByListing returns every record referencing the listing on either side,
// newest first, for display and audit.
func (s *Service) ListByListing(ctx context.Context, listingID uuid.UUID) ([]domain.MatchRecord, error) {
	var records []domain.MatchRecord
	err := s.DB.WithContext(ctx).
		Where("supply_listing_id = ? OR demand_listing_id = ?", listingID, listingID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MatchesForListing resolves the counterpart listing for each record and
// returns display rows ordered by score descending.
func (s *Service) MatchesForListing(ctx context.Context, listingID uuid.UUID) ([]MatchView, error) {
	var records []domain.MatchRecord
	err := s.DB.WithContext(ctx).
		Where("supply_listing_id = ? OR demand_listing_id = ?", listingID, listingID).
		Order("score DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(records))
	for _, record := range records {
		counterpartID := record.SupplyListingID
		if counterpartID == listingID {
			counterpartID = record.DemandListingID
		}
		counterpart, err := s.findListing(ctx, counterpartID)
		if err != nil {
			// Counterpart deleted by an administrative action; keep the row
			// with the reference unresolved.
			log.Warn().Str("listing_id", counterpartID.String()).Msg("Counterpart listing missing for match")
			counterpart = nil
		}
		views = append(views, MatchView{
			MatchID:          record.ID,
			Counterpart:      counterpart,
			Score:            record.Score,
			VectorSimilarity: record.VectorSimilarity,
			Status:           record.Status,
			CreatedAt:        record.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) findListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &listing, nil
}

func (s *Service) findPair(ctx context.Context, supplyID, demandID uuid.UUID) (*domain.MatchRecord, error) {
	var record domain.MatchRecord
	err := s.DB.WithContext(ctx).
		Where("supply_listing_id = ? AND demand_listing_id = ?", supplyID, demandID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
