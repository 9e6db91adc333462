package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"broker-backend/internal/domain"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOwnerListLimit  = 20
	defaultActiveListLimit = 100
)

type Service struct {
	DB *gorm.DB
}

type CreateListingInput struct {
	OwnerID     uuid.UUID
	Direction   string
	Category    string
	Title       string
	Description string
	PriceRange  string
	ContactInfo datatypes.JSON
	Tags        []string
	Embedding   []float32 // optional; nil defers matching until backfilled
	ExpireDays  int       // 0 means the default window
}

// Create validates and persists a new listing in active status.
// An unknown direction or empty title/description is a validation failure
// and nothing is written.
func (s *Service) Create(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	direction, err := domain.ParseDirection(in.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: direction must be supply or demand", domain.ErrValidation)
	}
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	expireDays := in.ExpireDays
	if expireDays <= 0 {
		expireDays = 30
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		OwnerID:     in.OwnerID,
		Direction:   direction,
		Category:    strings.TrimSpace(in.Category),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		PriceRange:  in.PriceRange,
		ContactInfo: in.ContactInfo,
		Status:      domain.ListingActive,
		Tags:        domain.TagList(in.Tags),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(expireDays) * 24 * time.Hour),
	}
	if len(in.Embedding) > 0 {
		vec := pgvector.NewVector(in.Embedding)
		listing.Embedding = &vec
	}

	if err := s.DB.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("Failed to create listing: %w", err)
	}
	log.Info().
		Str("listing_id", listing.ID.String()).
		Str("direction", string(direction)).
		Bool("embedded", listing.HasEmbedding()).
		Msg("Listing created")
	return listing, nil
}

// Get returns a listing by id or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// ListByOwner returns a user's listings, newest first, optionally filtered by
// direction and status. When status active is asked for, expired rows are
// excluded the same way ListActive excludes them.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, direction *domain.Direction, status *domain.ListingStatus, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = defaultOwnerListLimit
	}
	q := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if direction != nil {
		q = q.Where("direction = ?", *direction)
	}
	if status != nil {
		q = q.Where("status = ?", *status)
		if *status == domain.ListingActive {
			q = q.Where("expires_at > ?", time.Now().UTC())
		}
	}
	var listings []domain.Listing
	if err := q.Order("created_at DESC").Limit(limit).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// ListActive returns active, non-expired listings of one direction, newest first.
func (s *Service) ListActive(ctx context.Context, direction domain.Direction, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = defaultActiveListLimit
	}
	var listings []domain.Listing
	err := s.DB.WithContext(ctx).
		Where("direction = ? AND status = ? AND expires_at > ?", direction, domain.ListingActive, time.Now().UTC()).
		Order("created_at DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// SetStatus transitions a listing out of active. Only active -> matched and
// active -> closed are legal; everything else fails with ErrInvalidTransition
// and leaves the row unchanged. The conditional UPDATE keeps the check atomic.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, newStatus domain.ListingStatus) error {
	if newStatus != domain.ListingMatched && newStatus != domain.ListingClosed {
		return domain.ErrInvalidTransition
	}
	res := s.DB.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ? AND status = ?", id, domain.ListingActive).
		Update("status", newStatus)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var listing domain.Listing
		if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		return domain.ErrInvalidTransition
	}
	log.Info().Str("listing_id", id.String()).Str("status", string(newStatus)).Msg("Listing status updated")
	return nil
}

// SetEmbedding backfills a vector onto a listing that was created without one.
func (s *Service) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", domain.ErrValidation)
	}
	vec := pgvector.NewVector(embedding)
	res := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", id).Update("embedding", &vec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a listing. Administrative escape hatch; match records keep
// their id references and surface as dangling lookups.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.Listing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	log.Info().Str("listing_id", id.String()).Msg("Listing deleted")
	return nil
}

// CloseExpired transitions every active listing past its expiry to closed and
// returns the affected count for observability.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	res := s.DB.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("status = ? AND expires_at < ?", domain.ListingActive, time.Now().UTC()).
		Update("status", domain.ListingClosed)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("closed", res.RowsAffected).Msg("Expired listings closed")
	}
	return int(res.RowsAffected), nil
}
