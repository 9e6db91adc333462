package notifier

import (
	"context"

	"broker-backend/internal/application/ledger"
	"broker-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

// Notifier delivers match results and status changes to a listing owner.
// Delivery is a collaborator concern: implementations may log, post to a
// webhook, or hand off to a chat platform. Errors never abort the pipeline
// step that produced the matches.
type Notifier interface {
	NotifyMatches(ctx context.Context, listing *domain.Listing, matches []ledger.MatchView) error
	NotifyListingRecorded(ctx context.Context, listing *domain.Listing) error
	NotifyMatchAccepted(ctx context.Context, listing *domain.Listing, counterpart *domain.Listing) error
}

// LogNotifier writes notifications to the structured log. Default when no
// delivery endpoint is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyMatches(ctx context.Context, listing *domain.Listing, matches []ledger.MatchView) error {
	log.Info().
		Str("owner_id", listing.OwnerID.String()).
		Str("listing_id", listing.ID.String()).
		Int("matches", len(matches)).
		Str("message", BuildMatchesMessage(listing, matches)).
		Msg("Match notification")
	return nil
}

func (LogNotifier) NotifyListingRecorded(ctx context.Context, listing *domain.Listing) error {
	log.Info().
		Str("owner_id", listing.OwnerID.String()).
		Str("listing_id", listing.ID.String()).
		Str("message", BuildRecordedMessage(listing)).
		Msg("Listing recorded notification")
	return nil
}

func (LogNotifier) NotifyMatchAccepted(ctx context.Context, listing *domain.Listing, counterpart *domain.Listing) error {
	log.Info().
		Str("owner_id", listing.OwnerID.String()).
		Str("listing_id", listing.ID.String()).
		Str("message", BuildAcceptedMessage(listing, counterpart)).
		Msg("Match accepted notification")
	return nil
}

var _ Notifier = LogNotifier{}
