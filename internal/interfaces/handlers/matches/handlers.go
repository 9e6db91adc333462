package matches

import (
	"broker-backend/internal/application/catalog"
	"broker-backend/internal/application/ledger"
	"broker-backend/internal/application/notifier"
	"broker-backend/internal/domain"
	"broker-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Ledger   *ledger.Service
	Catalog  *catalog.Service
	Notifier notifier.Notifier
}

// GET /api/v1/matches/get-listing-matches/:listing_id
// Returns the listing's match records with the counterpart listing resolved,
// best score first.
func (h *Handlers) GetListingMatches(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	views, err := h.Ledger.MatchesForListing(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Matches fetched successfully", views, fiber.Map{"count": len(views)})
}

// PATCH /api/v1/matches/update-status
// Accepts or rejects a pending match. Accepting also promotes both listings
// out of active and notifies each owner with the counterpart's contact info.
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	var body struct {
		MatchID string `json:"match_id"`
		Status  string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	matchID, err := uuid.Parse(body.MatchID)
	if err != nil {
		return response.Error(c, "Invalid match_id format", fiber.StatusBadRequest, nil)
	}
	decision, err := domain.ParseMatchDecision(body.Status)
	if err != nil {
		return response.Error(c, "Status must be accepted or rejected", fiber.StatusBadRequest, nil)
	}

	var record *domain.MatchRecord
	switch decision {
	case domain.MatchAccepted:
		record, err = h.Ledger.Accept(c.Context(), matchID)
	case domain.MatchRejected:
		record, err = h.Ledger.Reject(c.Context(), matchID)
	}
	if err != nil {
		return response.FromError(c, err)
	}

	if decision == domain.MatchAccepted {
		h.notifyAccepted(c, record)
	}
	return response.Success(c, "Match status updated", record, nil)
}

func (h *Handlers) notifyAccepted(c *fiber.Ctx, record *domain.MatchRecord) {
	if h.Notifier == nil || h.Catalog == nil {
		return
	}
	supply, err := h.Catalog.Get(c.Context(), record.SupplyListingID)
	if err != nil {
		log.Warn().Err(err).Str("match_id", record.ID.String()).Msg("Accepted notification skipped")
		return
	}
	demand, err := h.Catalog.Get(c.Context(), record.DemandListingID)
	if err != nil {
		log.Warn().Err(err).Str("match_id", record.ID.String()).Msg("Accepted notification skipped")
		return
	}
	if err := h.Notifier.NotifyMatchAccepted(c.Context(), supply, demand); err != nil {
		log.Warn().Err(err).Str("match_id", record.ID.String()).Msg("Accepted notification failed")
	}
	if err := h.Notifier.NotifyMatchAccepted(c.Context(), demand, supply); err != nil {
		log.Warn().Err(err).Str("match_id", record.ID.String()).Msg("Accepted notification failed")
	}
}
