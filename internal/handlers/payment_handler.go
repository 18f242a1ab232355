package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
)

// PaymentHandler receives the payment provider's confirmation callback.
type PaymentHandler struct {
	applications services.ApplicationService
	apiKey       string
	log          *logger.Logger
}

func NewPaymentHandler(applications services.ApplicationService, apiKey string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{applications: applications, apiKey: apiKey, log: log}
}

func (h *PaymentHandler) Register(router fiber.Router) {
	gr := router.Group("/internal/applications", RequireAPIKey(h.apiKey))

	gr.Post("/:id/paid", h.MarkPaid)
}

func (h *PaymentHandler) MarkPaid(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	app, err := h.applications.MarkPaid(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	h.log.Info("payment confirmed", "application_id", id)
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(app))
}
