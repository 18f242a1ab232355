package handlers

import (
	"bytes"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
)

type ApplicationHandler struct {
	applications services.ApplicationService
	log          *logger.Logger
}

func NewApplicationHandler(applications services.ApplicationService, log *logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, log: log}
}

func (h *ApplicationHandler) Register(router fiber.Router) {
	gr := router.Group("/applications")

	gr.Post("/", h.Create)
	gr.Get("/me", h.GetMine)
	gr.Get("/sections", h.Sections)
	gr.Get("/:id", h.Get)
	gr.Get("/:id/sections", h.Sections)
	gr.Patch("/:id/responses", h.SaveResponses)
	gr.Get("/:id/progress", h.Progress)
}

func (h *ApplicationHandler) Create(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	var req services.CreateApplicationInput
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	app, err := h.applications.Create(c.Context(), caller, req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(CreateSuccessResponse(app))
}

func (h *ApplicationHandler) GetMine(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	app, err := h.applications.GetMine(c.Context(), caller)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(app))
}

func (h *ApplicationHandler) Get(c fiber.Ctx) error {
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

// SaveResponses accepts either a bare list of responses or an object with
// camper names and a responses list.
func (h *ApplicationHandler) SaveResponses(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	req, err := bindSaveResponses(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.applications.SaveResponses(c.Context(), caller, id, req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}

func bindSaveResponses(c fiber.Ctx) (services.SaveResponsesInput, error) {
	var req services.SaveResponsesInput
	if bytes.HasPrefix(bytes.TrimSpace(c.Body()), []byte("[")) {
		var items []models.ResponseInput
		if err := c.Bind().Body(&items); err != nil {
			return req, err
		}
		req.Responses = items
		return req, nil
	}

	err := c.Bind().Body(&req)
	return req, err
}

func (h *ApplicationHandler) Progress(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	progress, err := h.applications.Progress(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(progress))
}

// Sections serves the form, gated and with visibility resolved for the
// application in the path. Without one it serves the form of a new application.
func (h *ApplicationHandler) Sections(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	var id *uuid.UUID
	if c.Params("id") != "" {
		parsed, err := pathID(c)
		if err != nil {
			return writeError(c, h.log, err)
		}
		id = &parsed
	}

	sections, err := h.applications.Sections(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(sections))
}
