package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
)

// AdminHandler serves the review queue and the admin-only application actions.
type AdminHandler struct {
	applications services.ApplicationService
	approvals    services.ApprovalService
	reviews      services.ReviewService
	log          *logger.Logger
}

func NewAdminHandler(
	applications services.ApplicationService,
	approvals services.ApprovalService,
	reviews services.ReviewService,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		applications: applications,
		approvals:    approvals,
		reviews:      reviews,
		log:          log,
	}
}

func (h *AdminHandler) Register(router fiber.Router) {
	gr := router.Group("/admin/applications", RequireAdmin())

	gr.Get("/", h.List)
	gr.Get("/:id", h.Get)
	gr.Patch("/:id/responses", h.SaveResponses)
	gr.Post("/:id/decision/decline", h.DeclineApplication)
	gr.Post("/:id/reevaluate", h.Reevaluate)
	gr.Post("/:id/notes", h.AddNote)
	gr.Get("/:id/notes", h.Notes)
}

type listQuery struct {
	Status string `query:"status"`
	Search string `query:"search"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
}

func (h *AdminHandler) List(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	var q listQuery
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	filter := models.ApplicationFilter{Search: q.Search}
	if s := strings.TrimSpace(q.Status); s != "" {
		status, ok := models.ParseStatus(s)
		if !ok {
			return badRequest(c, "Unknown status: "+s)
		}
		filter.Status = &status
	}

	res, err := h.reviews.List(c.Context(), caller, filter, q.Page, q.Limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

func (h *AdminHandler) Get(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	app, err := h.applications.Get(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(app))
}

func (h *AdminHandler) SaveResponses(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	req, err := bindSaveResponses(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.applications.AdminSaveResponses(c.Context(), caller, id, req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

func (h *AdminHandler) DeclineApplication(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	app, err := h.approvals.DeclineApplication(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(app))
}

func (h *AdminHandler) Reevaluate(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	res, err := h.approvals.Reevaluate(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *AdminHandler) AddNote(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	var req noteRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	note, err := h.reviews.AddNote(c.Context(), caller, id, req.Note)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(CreateSuccessResponse(note))
}

func (h *AdminHandler) Notes(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	notes, err := h.reviews.Notes(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(notes))
}
