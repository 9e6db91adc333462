package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"broker-backend/internal/application/catalog"
	"broker-backend/internal/application/ledger"
	"broker-backend/internal/application/notifier"
	"broker-backend/internal/config"
	"broker-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service runs the per-listing matching pipeline:
// retrieve -> score -> persist top records -> notify the owner.
type Service struct {
	Catalog   *catalog.Service
	Ledger    *ledger.Service
	Retriever Retriever
	Notifier  notifier.Notifier
	Cfg       config.MatchingConfig
}

// ScoredCandidate couples a retrieved candidate with its composite score.
type ScoredCandidate struct {
	Candidate
	Score float64
}

// Result summarizes one matching run for logs and the batch counters.
type Result struct {
	ListingID uuid.UUID
	Skipped   bool // listing had no embedding; matching deferred
	Found     int  // candidates above the similarity floor
	Persisted int  // match records written to the ledger
	Notified  bool
}

// MatchListing runs the pipeline for one listing. A listing without an
// embedding is skipped (deferred, not an error to the caller); a retrieval
// backend failure abandons this run and surfaces domain.ErrRetrieval so the
// next scheduled cycle retries. Individual ledger or notify failures are
// logged and do not abort the remaining steps.
func (s *Service) MatchListing(ctx context.Context, listingID uuid.UUID) (*Result, error) {
	listing, err := s.Catalog.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	result := &Result{ListingID: listingID}

	scored, err := s.FindMatches(ctx, listing)
	if err != nil {
		if errors.Is(err, domain.ErrNotEmbedded) {
			log.Warn().Str("listing_id", listingID.String()).Msg("Listing has no embedding, matching deferred")
			result.Skipped = true
			return result, nil
		}
		return nil, err
	}
	result.Found = len(scored)

	limit := s.Cfg.MaxRecords
	if limit <= 0 {
		limit = 5
	}
	views := make([]ledger.MatchView, 0, limit)
	for _, sc := range scored {
		if result.Persisted >= limit {
			break
		}
		supplyID, demandID := pairIDs(listing, &sc.Listing)
		record, err := s.Ledger.Create(ctx, supplyID, demandID, sc.Score, sc.Similarity)
		if err != nil {
			log.Error().Err(err).
				Str("listing_id", listingID.String()).
				Str("candidate_id", sc.Listing.ID.String()).
				Msg("Failed to persist match record")
			continue
		}
		result.Persisted++
		counterpart := sc.Listing
		views = append(views, ledger.MatchView{
			MatchID:          record.ID,
			Counterpart:      &counterpart,
			Score:            record.Score,
			VectorSimilarity: record.VectorSimilarity,
			Status:           record.Status,
			CreatedAt:        record.CreatedAt,
		})
	}

	if err := s.Notifier.NotifyMatches(ctx, listing, views); err != nil {
		log.Error().Err(err).Str("listing_id", listingID.String()).Msg("Match notification failed")
	} else {
		result.Notified = true
	}

	log.Info().
		Str("listing_id", listingID.String()).
		Int("found", result.Found).
		Int("persisted", result.Persisted).
		Msg("Matching run finished")
	return result, nil
}

// FindMatches retrieves candidates for the listing and ranks them by
// composite score descending. No records are written.
func (s *Service) FindMatches(ctx context.Context, listing *domain.Listing) ([]ScoredCandidate, error) {
	candidates, err := s.Retriever.Retrieve(ctx, listing, s.Cfg.TopK, s.Cfg.Threshold)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, ScoredCandidate{
			Candidate: c,
			Score:     CompositeScore(s.Cfg, listing, &c.Listing, c.Similarity, now),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

// pairIDs orders a (source, candidate) pair into (supply, demand). The two
// listings always carry opposite directions; both trigger directions are
// handled symmetrically.
func pairIDs(source, candidate *domain.Listing) (supplyID, demandID uuid.UUID) {
	if source.Direction == domain.DirectionSupply {
		return source.ID, candidate.ID
	}
	return candidate.ID, source.ID
}
