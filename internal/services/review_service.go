package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/paginator"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Admin-side browsing of applications.
type ReviewService interface {
	List(ctx context.Context, caller models.Identity, filter models.ApplicationFilter, page, limit int) (*paginator.PaginatedResponse[models.ApplicationSummary], error)
	AddNote(ctx context.Context, caller models.Identity, id uuid.UUID, note string) (*models.AdminNote, error)
	Notes(ctx context.Context, caller models.Identity, id uuid.UUID) ([]models.AdminNote, error)
}

type reviewServiceImpl struct {
	*core
}

func NewReviewService(d Deps) ReviewService {
	return &reviewServiceImpl{core: newCore(d)}
}

func (s *reviewServiceImpl) List(ctx context.Context, caller models.Identity, filter models.ApplicationFilter, page, limit int) (*paginator.PaginatedResponse[models.ApplicationSummary], error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	filter.Search = strings.TrimSpace(filter.Search)
	page, limit = paginator.Normalize(page, limit)

	res, err := s.Store.ListApplications(ctx, filter, page, limit)
	if err != nil {
		return nil, fault.NewInternalError("failed to list applications", err)
	}
	return res, nil
}

func (s *reviewServiceImpl) AddNote(ctx context.Context, caller models.Identity, id uuid.UUID, note string) (*models.AdminNote, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fault.NewValidationError("note cannot be empty", nil)
	}

	if _, err := s.Store.GetApplication(ctx, id); err != nil {
		return nil, notFound(err, "application not found")
	}

	created, err := s.Store.CreateNote(ctx, models.AdminNote{
		ID:            uuid.New(),
		ApplicationID: id,
		AdminID:       caller.UserID,
		Note:          note,
		CreatedAt:     s.Now(),
	})
	if err != nil {
		return nil, fault.NewInternalError("failed to save note", err)
	}
	return created, nil
}

func (s *reviewServiceImpl) Notes(ctx context.Context, caller models.Identity, id uuid.UUID) ([]models.AdminNote, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetApplication(ctx, id); err != nil {
		return nil, notFound(err, "application not found")
	}
	return s.Store.ListNotes(ctx, id)
}
