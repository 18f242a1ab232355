package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/paginator"
)

// Store is the persistence boundary of the portal.
type Store interface {
	Reader

	// InApplicationTx runs fn as one transaction holding a lock scoped to the
	// application row. Writes made through tx are committed only when fn returns
	// nil. fn may be invoked again when the transaction loses a serialization race,
	// so it must not have effects outside tx. Unknown applications fail with
	// fault.ErrNotFound before fn runs.
	InApplicationTx(ctx context.Context, applicationID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error

	// CreateApplication inserts a new application. A user owns at most one; a second
	// one fails with fault.ErrUniqueViolation.
	CreateApplication(ctx context.Context, app models.Application) (*models.Application, error)
	CreateNote(ctx context.Context, note models.AdminNote) (*models.AdminNote, error)
}

// Reader serves reads outside of application transactions. A read issued after a
// committed write observes it.
type Reader interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetApplicationByUser(ctx context.Context, userID uuid.UUID) (*models.Application, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter, page, limit int) (*paginator.PaginatedResponse[models.ApplicationSummary], error)
	ListResponses(ctx context.Context, applicationID uuid.UUID) (map[uuid.UUID]models.Response, error)
	ListVotes(ctx context.Context, applicationID uuid.UUID) ([]models.Vote, error)
	ListNotes(ctx context.Context, applicationID uuid.UUID) ([]models.AdminNote, error)
	AdminExists(ctx context.Context, adminID uuid.UUID) (bool, error)
	GetFile(ctx context.Context, fileID uuid.UUID) (*models.FileInfo, error)
	ListFiles(ctx context.Context, fileIDs []uuid.UUID) ([]models.FileInfo, error)
}

// Tx is the view of one locked application inside InApplicationTx.
type Tx interface {
	// Application returns the locked row, including changes saved in this tx.
	Application() models.Application
	SaveApplication(ctx context.Context, app models.Application) error

	Responses(ctx context.Context) (map[uuid.UUID]models.Response, error)
	UpsertResponse(ctx context.Context, r models.Response) error
	DeleteResponse(ctx context.Context, questionID uuid.UUID) error
	// ClearFileReferences deletes every response pointing at the file and returns
	// the affected question ids.
	ClearFileReferences(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error)
	// CreateFile records an uploaded object for the locked application.
	CreateFile(ctx context.Context, f models.FileInfo) error
	FileBelongsToApplication(ctx context.Context, fileID uuid.UUID) (bool, error)
	DeleteFile(ctx context.Context, fileID uuid.UUID) error

	UpsertVote(ctx context.Context, vote models.Vote) error
	Votes(ctx context.Context) ([]models.Vote, error)
}
