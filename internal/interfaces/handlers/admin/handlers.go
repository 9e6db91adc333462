package admin

import (
	"broker-backend/internal/application/lifecycle"
	"broker-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes manual triggers for the scheduled jobs. Both routes are
// guarded by the same key as the health reset endpoint.
type Handlers struct {
	Manager  *lifecycle.Manager
	AdminKey string
}

func (h *Handlers) authorized(c *fiber.Ctx) bool {
	return h.AdminKey != "" && c.Query("key") == h.AdminKey
}

// POST /api/v1/admin/run-rescan
func (h *Handlers) RunRescan(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return response.Unauthorized(c, "Invalid admin key")
	}
	processed, matched, err := h.Manager.RunBatchRescan(c.Context())
	if err != nil {
		return response.Error(c, "Rescan failed", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Rescan complete", fiber.Map{
		"processed": processed,
		"matched":   matched,
	}, nil)
}

// POST /api/v1/admin/run-expiry-sweep
func (h *Handlers) RunExpirySweep(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return response.Unauthorized(c, "Invalid admin key")
	}
	closed, err := h.Manager.RunExpirySweep(c.Context())
	if err != nil {
		return response.Error(c, "Expiry sweep failed", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Expiry sweep complete", fiber.Map{"closed": closed}, nil)
}
