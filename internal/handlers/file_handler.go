package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
	"github.com/paulexconde/camperportal/pkg/fault"
)

const maxBatchFiles = 100

type FileHandler struct {
	files services.FileService
	log   *logger.Logger
}

func NewFileHandler(files services.FileService, log *logger.Logger) *FileHandler {
	return &FileHandler{files: files, log: log}
}

func (h *FileHandler) Register(router fiber.Router) {
	gr := router.Group("/files")

	gr.Post("/upload", h.Upload)
	gr.Post("/batch", h.GetBatch)
	gr.Get("/:id", h.Get)
	gr.Delete("/:id", h.Delete)
}

func (h *FileHandler) Get(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	file, err := h.files.GetFile(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(file))
}

// Upload takes a multipart form with application_id, question_id and file.
func (h *FileHandler) Upload(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	applicationID, err := uuid.Parse(c.FormValue("application_id"))
	if err != nil {
		return badRequest(c, "Invalid application_id")
	}
	questionID, err := uuid.Parse(c.FormValue("question_id"))
	if err != nil {
		return badRequest(c, "Invalid question_id")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Missing file")
	}
	file, err := header.Open()
	if err != nil {
		return writeError(c, h.log, fault.NewInternalError("failed to read upload", err))
	}
	defer file.Close()

	res, err := h.files.Upload(c.Context(), caller, services.UploadInput{
		ApplicationID: applicationID,
		QuestionID:    questionID,
		Filename:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Size:          header.Size,
		Body:          file,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(CreateSuccessResponse(res))
}

type batchRequest struct {
	FileIDs []uuid.UUID `json:"file_ids"`
}

func (h *FileHandler) GetBatch(c fiber.Ctx) error {
	caller, _ := identityFrom(c)

	var req batchRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.FileIDs) > maxBatchFiles {
		return badRequest(c, "Too many file ids")
	}

	files, err := h.files.GetFilesBatch(c.Context(), caller, req.FileIDs)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(files))
}

func (h *FileHandler) Delete(c fiber.Ctx) error {
	caller, _ := identityFrom(c)
	id, err := pathID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}

	res, err := h.files.DeleteFile(c.Context(), caller, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(http.StatusOK).JSON(CreateSuccessResponse(res))
}
