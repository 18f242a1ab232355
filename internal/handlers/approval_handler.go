package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
)

// ApprovalHandler serves the admin voting endpoints.
type ApprovalHandler struct {
	approvals services.ApprovalService
	log       *logger.Logger
}

func NewApprovalHandler(approvals services.ApprovalService, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, log: log}
}

func (h *ApprovalHandler) Register(router fiber.Router) {
	gr := router.Group("/applications")

	gr.Post("/:id/approve", RequireAdmin(), h.Approve)
	gr.Post("/:id/decline", RequireAdmin(), h.Decline)
	gr.Get("/:id/approval-status", RequireAdmin(), h.Status)
}

func (h *ApprovalHandler) Approve(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	res, err := h.approvals.Approve(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

func (h *ApprovalHandler) Decline(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	res, err := h.approvals.Decline(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

func (h *ApprovalHandler) Status(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	status, err := h.approvals.Status(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(status))
}
