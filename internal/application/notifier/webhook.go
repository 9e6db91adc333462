package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"broker-backend/internal/application/ledger"
	"broker-backend/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// WebhookNotifier posts notification payloads to a delivery endpoint (the
// chat-platform bridge lives behind it). Transient failures are retried with
// exponential backoff inside a small elapsed budget; a notification that
// still fails is logged and dropped, never bubbled into the pipeline.
type WebhookNotifier struct {
	URL        string
	Client     *http.Client
	MaxElapsed time.Duration
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		Client:     &http.Client{Timeout: 10 * time.Second},
		MaxElapsed: 30 * time.Second,
	}
}

type webhookPayload struct {
	Kind      string    `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	ListingID string    `json:"listing_id"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

func (n *WebhookNotifier) NotifyMatches(ctx context.Context, listing *domain.Listing, matches []ledger.MatchView) error {
	return n.deliver(ctx, webhookPayload{
		Kind:      "matches",
		OwnerID:   listing.OwnerID.String(),
		ListingID: listing.ID.String(),
		Message:   BuildMatchesMessage(listing, matches),
		SentAt:    time.Now().UTC(),
	})
}

func (n *WebhookNotifier) NotifyListingRecorded(ctx context.Context, listing *domain.Listing) error {
	return n.deliver(ctx, webhookPayload{
		Kind:      "listing_recorded",
		OwnerID:   listing.OwnerID.String(),
		ListingID: listing.ID.String(),
		Message:   BuildRecordedMessage(listing),
		SentAt:    time.Now().UTC(),
	})
}

func (n *WebhookNotifier) NotifyMatchAccepted(ctx context.Context, listing *domain.Listing, counterpart *domain.Listing) error {
	return n.deliver(ctx, webhookPayload{
		Kind:      "match_accepted",
		OwnerID:   listing.OwnerID.String(),
		ListingID: listing.ID.String(),
		Message:   BuildAcceptedMessage(listing, counterpart),
		SentAt:    time.Now().UTC(),
	})
}

func (n *WebhookNotifier) deliver(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifier: marshal payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = n.MaxElapsed

	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.Client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("notifier: endpoint returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("notifier: endpoint rejected payload with status %d", resp.StatusCode))
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		log.Error().Err(err).
			Str("kind", payload.Kind).
			Str("listing_id", payload.ListingID).
			Msg("Notification delivery failed")
		return err
	}
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
