package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// The body of a responses PATCH. Camper names are optional.
type SaveResponsesInput struct {
	CamperFirstName *string                `json:"camper_first_name"`
	CamperLastName  *string                `json:"camper_last_name"`
	Responses       []models.ResponseInput `json:"responses"`
}

type CreateApplicationInput struct {
	CamperFirstName string `json:"camper_first_name"`
	CamperLastName  string `json:"camper_last_name"`
}

type ApplicationService interface {
	Create(ctx context.Context, caller models.Identity, in CreateApplicationInput) (*models.Application, error)
	GetMine(ctx context.Context, caller models.Identity) (*models.ApplicationWithResponses, error)
	Get(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApplicationWithResponses, error)
	// SaveResponses is the applicant's autosave. Each item is last-write-wins per
	// question; the whole batch is applied atomically with the progress recompute.
	SaveResponses(ctx context.Context, caller models.Identity, id uuid.UUID, in SaveResponsesInput) (*SaveResult, error)
	// AdminSaveResponses edits answers on behalf of the applicant in any status.
	AdminSaveResponses(ctx context.Context, caller models.Identity, id uuid.UUID, in SaveResponsesInput) (*SaveResult, error)
	Progress(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApplicationProgress, error)
	// Sections returns the form as the application sees it in its current status.
	// Without an id the form of a fresh application is returned.
	Sections(ctx context.Context, caller models.Identity, id *uuid.UUID) ([]models.SectionView, error)
	// MarkPaid is called by the payment collaborator.
	MarkPaid(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

type applicationServiceImpl struct {
	*core
}

func NewApplicationService(d Deps) ApplicationService {
	return &applicationServiceImpl{core: newCore(d)}
}

func (s *applicationServiceImpl) Create(ctx context.Context, caller models.Identity, in CreateApplicationInput) (*models.Application, error) {
	first := strings.TrimSpace(in.CamperFirstName)
	last := strings.TrimSpace(in.CamperLastName)
	if first == "" || last == "" {
		return nil, fault.NewValidationError("camper first and last name are required", nil)
	}

	now := s.Now()
	app, err := s.Store.CreateApplication(ctx, models.Application{
		ID:              uuid.New(),
		UserID:          caller.UserID,
		CamperFirstName: first,
		CamperLastName:  last,
		Status:          models.StatusInProgress,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, fault.ErrUniqueViolation) {
		return nil, fault.NewValidationError("an application already exists for this user", err)
	}
	if err != nil {
		return nil, fault.NewInternalError("failed to create application", err)
	}

	s.Log.Info("application created", "application_id", app.ID, "user_id", app.UserID)
	return app, nil
}

func (s *applicationServiceImpl) GetMine(ctx context.Context, caller models.Identity) (*models.ApplicationWithResponses, error) {
	app, err := s.Store.GetApplicationByUser(ctx, caller.UserID)
	if err != nil {
		return nil, notFound(err, "application not found")
	}
	return s.withResponses(ctx, app)
}

func (s *applicationServiceImpl) Get(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApplicationWithResponses, error) {
	app, err := s.loadApplication(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.withResponses(ctx, app)
}

func (s *applicationServiceImpl) withResponses(ctx context.Context, app *models.Application) (*models.ApplicationWithResponses, error) {
	responses, err := s.Store.ListResponses(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	out := &models.ApplicationWithResponses{
		Application: *app,
		Responses:   make([]models.Response, 0, len(responses)),
	}
	for _, r := range responses {
		out.Responses = append(out.Responses, r)
	}
	slices.SortFunc(out.Responses, func(a, b models.Response) int {
		return strings.Compare(a.QuestionID.String(), b.QuestionID.String())
	})
	return out, nil
}

func (s *applicationServiceImpl) Progress(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApplicationProgress, error) {
	app, err := s.loadApplication(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}

	responses, err := s.Store.ListResponses(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	progress := s.progressFor(*app, sections, responses)
	return &progress, nil
}

func (s *applicationServiceImpl) Sections(ctx context.Context, caller models.Identity, id *uuid.UUID) ([]models.SectionView, error) {
	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}

	status := models.StatusInProgress
	responses := map[uuid.UUID]models.Response{}
	if id != nil {
		app, err := s.loadApplication(ctx, caller, *id)
		if err != nil {
			return nil, err
		}
		status = app.Status

		if responses, err = s.Store.ListResponses(ctx, app.ID); err != nil {
			return nil, err
		}
	}

	gated := GateSections(sections, status)
	return SectionViews(gated, ResolveVisibility(CatalogQuestions(gated), responses)), nil
}

func (s *applicationServiceImpl) SaveResponses(ctx context.Context, caller models.Identity, id uuid.UUID, in SaveResponsesInput) (*SaveResult, error) {
	app, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return nil, notFound(err, "application not found")
	}
	if app.UserID != caller.UserID {
		return nil, fault.NewNotFoundError("application not found", nil)
	}

	return s.save(ctx, caller, id, in, false)
}

func (s *applicationServiceImpl) AdminSaveResponses(ctx context.Context, caller models.Identity, id uuid.UUID, in SaveResponsesInput) (*SaveResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	res, err := s.save(ctx, caller, id, in, true)
	if err != nil {
		return nil, err
	}

	questionIDs := make([]string, 0, len(in.Responses))
	for _, r := range in.Responses {
		questionIDs = append(questionIDs, r.QuestionID.String())
	}
	s.Log.Info("audit",
		"entity", "application",
		"action", "admin_edit",
		"application_id", id,
		"admin_id", caller.UserID,
		"question_ids", questionIDs,
	)
	return res, nil
}

type pendingWrite struct {
	question models.Question
	value    models.ResponseValue
}

// parseWrites resolves question ids against the catalog and validates every value
// before anything is written.
func (s *applicationServiceImpl) parseWrites(sections []models.Section, inputs []models.ResponseInput) ([]pendingWrite, error) {
	questions := map[uuid.UUID]models.Question{}
	for _, q := range CatalogQuestions(sections) {
		questions[q.ID] = q
	}

	writes := make([]pendingWrite, 0, len(inputs))
	for _, in := range inputs {
		q, ok := questions[in.QuestionID]
		if !ok || !q.IsActive {
			return nil, fault.NewValidationError(fmt.Sprintf("unknown question_id %s", in.QuestionID), nil)
		}

		value, err := in.Value()
		if err != nil {
			return nil, err
		}
		if err := s.Validator.Validate(q, value); err != nil {
			if fault.IsInternal(err) {
				s.Log.Error("validation rule could not be evaluated", "question_id", q.ID, "error", err)
			}
			return nil, err
		}

		writes = append(writes, pendingWrite{question: q, value: value})
	}
	return writes, nil
}

func (s *applicationServiceImpl) save(ctx context.Context, caller models.Identity, id uuid.UUID, in SaveResponsesInput, asAdmin bool) (*SaveResult, error) {
	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}

	writes, err := s.parseWrites(sections, in.Responses)
	if err != nil {
		return nil, err
	}

	var (
		result  *SaveResult
		changes []models.StatusChange
	)
	err = s.Store.InApplicationTx(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		result, changes = nil, nil

		app := tx.Application()
		if !asAdmin {
			if err := checkApplicantWrite(app, sections, writes, in); err != nil {
				return err
			}
		}

		if err := s.applyNames(ctx, tx, in); err != nil {
			return err
		}
		if err := s.applyWrites(ctx, tx, writes); err != nil {
			return err
		}

		actor := caller.UserID
		var err error
		result, changes, err = s.recompute(ctx, tx, sections, &actor)
		return err
	})
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	s.publish(changes)
	return result, nil
}

// checkApplicantWrite enforces what an applicant may change in the current status.
// Once the review has concluded only post-acceptance questions stay writable, and
// only while the application is accepted or paid.
func checkApplicantWrite(app models.Application, sections []models.Section, writes []pendingWrite, in SaveResponsesInput) error {
	if app.Status.IsTerminal() {
		if in.CamperFirstName != nil || in.CamperLastName != nil {
			return fault.NewInvalidStateError("the application can no longer be edited", nil)
		}
		if !app.Status.PostAcceptance() && len(writes) > 0 {
			return fault.NewInvalidStateError("the application can no longer be edited", nil)
		}
		open := PostAcceptanceQuestions(sections)
		for _, w := range writes {
			if _, ok := open[w.question.ID]; !ok {
				return fault.NewInvalidStateError("the application can no longer be edited", nil)
			}
		}
	}

	available := map[uuid.UUID]struct{}{}
	for _, q := range CatalogQuestions(GateSections(sections, app.Status)) {
		available[q.ID] = struct{}{}
	}
	for _, w := range writes {
		if _, ok := available[w.question.ID]; !ok {
			return fault.NewValidationError(fmt.Sprintf("question %s is not available for this application", w.question.ID), nil)
		}
	}
	return nil
}

func (s *applicationServiceImpl) applyNames(ctx context.Context, tx repository.Tx, in SaveResponsesInput) error {
	if in.CamperFirstName == nil && in.CamperLastName == nil {
		return nil
	}

	app := tx.Application()
	if in.CamperFirstName != nil {
		app.CamperFirstName = strings.TrimSpace(*in.CamperFirstName)
	}
	if in.CamperLastName != nil {
		app.CamperLastName = strings.TrimSpace(*in.CamperLastName)
	}
	if app.CamperFirstName == "" || app.CamperLastName == "" {
		return fault.NewValidationError("camper first and last name cannot be empty", nil)
	}
	return tx.SaveApplication(ctx, app)
}

func (s *applicationServiceImpl) applyWrites(ctx context.Context, tx repository.Tx, writes []pendingWrite) error {
	now := s.Now()
	appID := tx.Application().ID

	for _, w := range writes {
		if w.value == nil {
			if err := tx.DeleteResponse(ctx, w.question.ID); err != nil {
				return err
			}
			continue
		}

		if ref, ok := w.value.(models.FileRef); ok {
			owned, err := tx.FileBelongsToApplication(ctx, ref.FileID)
			if err != nil {
				return err
			}
			if !owned {
				return fault.NewValidationError(fmt.Sprintf("file %s was not uploaded for this application", ref.FileID), nil)
			}
		}

		err := tx.UpsertResponse(ctx, models.Response{
			ApplicationID: appID,
			QuestionID:    w.question.ID,
			Value:         w.value,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *applicationServiceImpl) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var (
		app    models.Application
		change models.StatusChange
	)
	err := s.Store.InApplicationTx(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		app = tx.Application()

		var err error
		change, err = Transition(&app, models.StatusPaid, s.Now())
		if err != nil {
			return err
		}
		return tx.SaveApplication(ctx, app)
	})
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	s.publish([]models.StatusChange{change})
	return &app, nil
}
