package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
)

type RouterDeps struct {
	Applications services.ApplicationService
	Approvals    services.ApprovalService
	Files        services.FileService
	Reviews      services.ReviewService
	Verifier     TokenVerifier
	// PaymentAPIKey guards the payment callback. The route is not mounted when empty.
	PaymentAPIKey string
	BodyLimit     int
	Log           *logger.Logger
}

// NewApp builds the fiber app with every route mounted.
func NewApp(d RouterDeps) *fiber.App {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}

	cfg := fiber.Config{
		AppName:      "camper-portal",
		ErrorHandler: errorHandler(d.Log),
	}
	if d.BodyLimit > 0 {
		cfg.BodyLimit = d.BodyLimit
	}
	app := fiber.New(cfg)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(CreateSuccessResponse(fiber.Map{"status": "ok"}))
	})

	if d.PaymentAPIKey != "" {
		NewPaymentHandler(d.Applications, d.PaymentAPIKey, d.Log).Register(app)
	}

	app.Use(RequireAuth(d.Verifier))
	NewApplicationHandler(d.Applications, d.Log).Register(app)
	NewApprovalHandler(d.Approvals, d.Log).Register(app)
	NewFileHandler(d.Files, d.Log).Register(app)
	NewAdminHandler(d.Applications, d.Approvals, d.Reviews, d.Log).Register(app)

	return app
}

func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := "HTTP_ERROR"
			switch fe.Code {
			case http.StatusNotFound:
				code = "NOT_FOUND"
			case http.StatusMethodNotAllowed:
				code = "METHOD_NOT_ALLOWED"
			case http.StatusRequestEntityTooLarge:
				code = "PAYLOAD_TOO_LARGE"
			}
			return c.Status(fe.Code).JSON(CreateErrorResponse(code, fe.Message))
		}
		return writeError(c, log, err)
	}
}
