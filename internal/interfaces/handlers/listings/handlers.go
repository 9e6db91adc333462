package listings

import (
	"encoding/json"
	"strconv"

	"broker-backend/internal/application/catalog"
	"broker-backend/internal/application/embedding"
	"broker-backend/internal/application/lifecycle"
	"broker-backend/internal/application/notifier"
	"broker-backend/internal/domain"
	"broker-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

type Handlers struct {
	Service    *catalog.Service
	Embedder   embedding.Provider // nil when no provider is configured
	Lifecycle  *lifecycle.Manager
	Notifier   notifier.Notifier
	ExpireDays int
}

type createListingRequest struct {
	OwnerID     string            `json:"owner_id"`
	Direction   string            `json:"direction"`
	Category    string            `json:"category"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	PriceRange  string            `json:"price_range"`
	Tags        []string          `json:"tags"`
	ContactInfo map[string]string `json:"contact_info"`
	ExpireDays  int               `json:"expire_days"`
}

// POST /api/v1/listings/create-listing
// Embeds the listing text when a provider is available, persists the
// listing, then kicks off matching in the background. An embedding failure
// is not fatal; the listing is created un-embedded and picked up by the
// batch re-scan once backfilled.
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body createListingRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ownerID, err := uuid.Parse(body.OwnerID)
	if err != nil {
		return response.Error(c, "Invalid owner_id format", fiber.StatusBadRequest, nil)
	}

	var contact datatypes.JSON
	if len(body.ContactInfo) > 0 {
		raw, err := json.Marshal(body.ContactInfo)
		if err != nil {
			return response.Error(c, "Invalid contact_info", fiber.StatusBadRequest, nil)
		}
		contact = datatypes.JSON(raw)
	}

	var vec []float32
	if h.Embedder != nil {
		text := embedding.ComposeText(body.Title, body.Description, body.Category, body.Tags)
		vec, err = h.Embedder.Embed(c.Context(), text)
		if err != nil {
			log.Warn().Err(err).Msg("Embedding failed, creating listing without vector")
			vec = nil
		}
	}

	expireDays := body.ExpireDays
	if expireDays <= 0 {
		expireDays = h.ExpireDays
	}
	listing, err := h.Service.Create(c.Context(), catalog.CreateListingInput{
		OwnerID:     ownerID,
		Direction:   body.Direction,
		Category:    body.Category,
		Title:       body.Title,
		Description: body.Description,
		PriceRange:  body.PriceRange,
		ContactInfo: contact,
		Tags:        body.Tags,
		Embedding:   vec,
		ExpireDays:  expireDays,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	if h.Notifier != nil {
		if err := h.Notifier.NotifyListingRecorded(c.Context(), listing); err != nil {
			log.Warn().Err(err).Str("listing_id", listing.ID.String()).Msg("Recorded notification failed")
		}
	}
	if h.Lifecycle != nil && listing.HasEmbedding() {
		h.Lifecycle.TriggerMatch(listing.ID)
	}

	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings/get-listing/:listing_id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	listing, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// GET /api/v1/listings/get-user-listings?owner_id=&direction=&status=&limit=
func (h *Handlers) GetUserListings(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		return response.Error(c, "owner_id is required", fiber.StatusBadRequest, nil)
	}

	var direction *domain.Direction
	if q := c.Query("direction"); q != "" {
		d, err := domain.ParseDirection(q)
		if err != nil {
			return response.Error(c, "Invalid direction", fiber.StatusBadRequest, nil)
		}
		direction = &d
	}
	var status *domain.ListingStatus
	if q := c.Query("status"); q != "" {
		s, err := domain.ParseListingStatus(q)
		if err != nil {
			return response.Error(c, "Invalid status", fiber.StatusBadRequest, nil)
		}
		status = &s
	}
	limit := 0
	if q := c.Query("limit"); q != "" {
		limit, _ = strconv.Atoi(q)
	}

	listings, err := h.Service.ListByOwner(c.Context(), ownerID, direction, status, limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", listings, fiber.Map{"count": len(listings)})
}

// PATCH /api/v1/listings/update-status — close a listing (or mark matched).
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	var body struct {
		ListingID string `json:"listing_id"`
		Status    string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	id, err := uuid.Parse(body.ListingID)
	if err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	status, err := domain.ParseListingStatus(body.Status)
	if err != nil {
		return response.Error(c, "Invalid status", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.SetStatus(c.Context(), id, status); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing status updated", fiber.Map{"listing_id": id, "status": status}, nil)
}
