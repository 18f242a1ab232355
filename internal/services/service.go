package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Collaborators shared by the portal services.
type Deps struct {
	Store     repository.Store
	Catalog   CatalogProvider
	Validator *ResponseValidator
	Engine    ConsensusEngine
	Ledger    ApprovalLedger
	Notifier  StatusNotifier
	Objects   ObjectStore
	Log       *logger.Logger
	Now       func() time.Time

	// Upper bound of concurrent URL signing in GetFilesBatch.
	FileBatchConcurrency int
	// Upload limits. Extensions include the leading dot.
	MaxFileSize      int64
	AllowedFileTypes []string
}

type core struct {
	Deps
}

func newCore(d Deps) *core {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Validator == nil {
		d.Validator = NewResponseValidator()
	}
	if d.Engine == nil {
		d.Engine = NewConsensusEngine()
	}
	if d.Ledger == nil {
		d.Ledger = NewApprovalLedger(d.Now)
	}
	if d.Notifier == nil {
		d.Notifier = discardNotifier{}
	}
	if d.FileBatchConcurrency < 1 {
		d.FileBatchConcurrency = 8
	}
	if d.MaxFileSize <= 0 {
		d.MaxFileSize = DefaultMaxFileSize
	}
	if len(d.AllowedFileTypes) == 0 {
		d.AllowedFileTypes = DefaultFileTypes
	}
	return &core{Deps: d}
}

// The result of a write that may have moved the application forward.
type SaveResult struct {
	Application   models.Application         `json:"application"`
	Progress      models.ApplicationProgress `json:"progress"`
	StatusChanged bool                       `json:"status_changed"`
}

// sections loads the full catalog and refuses to work with a malformed one.
func (c *core) sections(ctx context.Context) ([]models.Section, error) {
	sections, err := c.Catalog.Sections(ctx)
	if err != nil {
		return nil, fault.NewInternalError("failed to load application catalog", err)
	}
	if err := ValidateCatalog(sections); err != nil {
		c.Log.Error("catalog failed validation, refusing to compute progress", "error", err)
		return nil, fault.NewInternalError("application catalog is misconfigured", err)
	}
	return sections, nil
}

// progressFor resolves visibility and aggregates progress for app.
func (c *core) progressFor(app models.Application, sections []models.Section, responses map[uuid.UUID]models.Response) models.ApplicationProgress {
	gated := GateSections(sections, app.Status)
	visible := ResolveVisibility(CatalogQuestions(gated), responses)
	return AggregateProgress(app.ID, gated, visible, responses)
}

// recompute refreshes the persisted completion of the locked application and
// applies the under_review transition when it becomes complete.
func (c *core) recompute(ctx context.Context, tx repository.Tx, sections []models.Section, actor *uuid.UUID) (*SaveResult, []models.StatusChange, error) {
	app := tx.Application()

	responses, err := tx.Responses(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := c.Now()
	progress := c.progressFor(app, sections, responses)
	app.CompletionPercentage = progress.OverallPercentage
	app.UpdatedAt = now

	var changes []models.StatusChange
	if d := c.Engine.EvaluateProgress(app.Status, progress); d.Transition {
		change, err := Transition(&app, d.To, now)
		if err != nil {
			return nil, nil, err
		}
		change.ActorID = actor
		changes = append(changes, change)
	}

	if err := tx.SaveApplication(ctx, app); err != nil {
		return nil, nil, err
	}

	return &SaveResult{Application: app, Progress: progress, StatusChanged: len(changes) > 0}, changes, nil
}

// publish hands committed transitions to the notifier.
func (c *core) publish(changes []models.StatusChange) {
	for _, change := range changes {
		c.Log.Info("application status changed",
			"application_id", change.ApplicationID,
			"from", change.From,
			"to", change.To,
			"actor_id", change.ActorID,
		)
	}
	if len(changes) > 0 {
		c.Notifier.Notify(changes...)
	}
}

// loadApplication returns the application if caller may see it. Applicants only
// see their own; anything else is reported as not found.
func (c *core) loadApplication(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.Application, error) {
	app, err := c.Store.GetApplication(ctx, id)
	if err != nil {
		return nil, notFound(err, "application not found")
	}
	if !caller.IsAdmin() && app.UserID != caller.UserID {
		return nil, fault.NewNotFoundError("application not found", nil)
	}
	return app, nil
}

// requireAdmin checks the caller is a known admin.
func (c *core) requireAdmin(ctx context.Context, caller models.Identity) error {
	if !caller.IsAdmin() {
		return fault.NewNotFoundError("unknown admin", nil)
	}
	ok, err := c.Store.AdminExists(ctx, caller.UserID)
	if err != nil {
		return fault.NewInternalError("failed to look up admin", err)
	}
	if !ok {
		return fault.NewNotFoundError("unknown admin", nil)
	}
	return nil
}

// notFound converts the store's not-found sentinel into a NotFound fault and leaves
// other errors alone.
func notFound(err error, msg string) error {
	if errors.Is(err, fault.ErrNotFound) {
		return fault.NewNotFoundError(msg, err)
	}
	return err
}
