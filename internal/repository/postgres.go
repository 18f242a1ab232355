package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/pkg/paginator"
	"github.com/paulexconde/camperportal/internal/pkg/store"
	"github.com/paulexconde/camperportal/pkg/fault"
)

const (
	maxTxAttempts = 5
	txBackoff     = 20 * time.Millisecond
)

const applicationColumns = `id, user_id, camper_first_name, camper_last_name, status, completion_percentage,
	created_at, updated_at, completed_at, accepted_at, declined_at, paid_at`

const listApplicationsQuery = `
	SELECT a.id, a.user_id, a.camper_first_name, a.camper_last_name, a.status,
		a.completion_percentage, a.updated_at,
		COUNT(DISTINCT v.team) FILTER (WHERE v.direction = 'approve') AS approval_count,
		COALESCE(ARRAY_AGG(DISTINCT v.team ORDER BY v.team) FILTER (WHERE v.direction = 'approve'), '{}') AS approved_by_teams
	FROM applications a
	LEFT JOIN application_votes v ON v.application_id = a.id
	WHERE ($1::text IS NULL OR a.status = $1::text)
		AND ($2::text = '' OR (a.camper_first_name || ' ' || a.camper_last_name) ILIKE '%' || $2::text || '%')
	GROUP BY a.id
	ORDER BY a.updated_at DESC, a.id`

type applicationDTO struct {
	ID                   uuid.UUID                `db:"id"`
	UserID               uuid.UUID                `db:"user_id"`
	CamperFirstName      string                   `db:"camper_first_name"`
	CamperLastName       string                   `db:"camper_last_name"`
	Status               models.ApplicationStatus `db:"status"`
	CompletionPercentage int                      `db:"completion_percentage"`
	CreatedAt            time.Time                `db:"created_at"`
	UpdatedAt            time.Time                `db:"updated_at"`
}

func (d applicationDTO) ToModel(id uuid.UUID) any {
	return &models.Application{
		ID:                   id,
		UserID:               d.UserID,
		CamperFirstName:      d.CamperFirstName,
		CamperLastName:       d.CamperLastName,
		Status:               d.Status,
		CompletionPercentage: d.CompletionPercentage,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

type noteDTO struct {
	ID            uuid.UUID `db:"id"`
	ApplicationID uuid.UUID `db:"application_id"`
	AdminID       uuid.UUID `db:"admin_id"`
	Note          string    `db:"note"`
	CreatedAt     time.Time `db:"created_at"`
}

func (d noteDTO) ToModel(id uuid.UUID) any {
	return &models.AdminNote{
		ID:            id,
		ApplicationID: d.ApplicationID,
		AdminID:       d.AdminID,
		Note:          d.Note,
		CreatedAt:     d.CreatedAt,
	}
}

type responseRow struct {
	ApplicationID uuid.UUID      `db:"application_id"`
	QuestionID    uuid.UUID      `db:"question_id"`
	ResponseValue sql.NullString `db:"response_value"`
	FileID        uuid.NullUUID  `db:"file_id"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r responseRow) toModel() models.Response {
	out := models.Response{
		ApplicationID: r.ApplicationID,
		QuestionID:    r.QuestionID,
		UpdatedAt:     r.UpdatedAt,
	}
	switch {
	case r.FileID.Valid:
		out.Value = models.FileRef{FileID: r.FileID.UUID}
	case r.ResponseValue.Valid:
		out.Value = models.TextValue(r.ResponseValue.String)
	}
	return out
}

func responseMap(rows []responseRow) map[uuid.UUID]models.Response {
	out := make(map[uuid.UUID]models.Response, len(rows))
	for _, r := range rows {
		out[r.QuestionID] = r.toModel()
	}
	return out
}

// PostgresStore runs every application write as a serializable transaction that
// holds the application row lock.
type PostgresStore struct {
	db           *sqlx.DB
	log          *logger.Logger
	applications store.Datastorer[models.Application]
	notes        store.Datastorer[models.AdminNote]
	summaries    paginator.Paginator[models.ApplicationSummary]
}

func NewPostgresStore(db *sqlx.DB, log *logger.Logger) *PostgresStore {
	s := &PostgresStore{
		db:           db,
		log:          log,
		applications: store.NewDataStore[models.Application](db, "applications"),
		notes:        store.NewDataStore[models.AdminNote](db, "admin_notes"),
		summaries:    paginator.NewPaginator(store.NewDataStore[models.ApplicationSummary](db, "applications")),
	}

	s.applications.SetHooks(store.Hooks{
		PreSave: []func(ctx context.Context, tx *sqlx.Tx, data store.DTO) error{
			oneApplicationPerUser,
		},
		AfterSaveCommit: []func(ctx context.Context, data store.DTO, model any) store.AfterSaveCommitHook{
			func(ctx context.Context, data store.DTO, model any) store.AfterSaveCommitHook {
				app, ok := model.(*models.Application)
				if !ok {
					return nil
				}
				return func() {
					s.log.Debug("application row inserted", "application_id", app.ID, "user_id", app.UserID)
				}
			},
		},
	})

	return s
}

func oneApplicationPerUser(ctx context.Context, tx *sqlx.Tx, data store.DTO) error {
	dto, ok := data.(applicationDTO)
	if !ok {
		return fmt.Errorf("unexpected application payload %T", data)
	}

	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM applications WHERE user_id = $1)`, dto.UserID)
	if err != nil {
		return store.TranslateError(err)
	}
	if exists {
		return fault.ErrUniqueViolation
	}
	return nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app models.Application) (*models.Application, error) {
	model, err := s.applications.Create(ctx, applicationDTO{
		ID:                   app.ID,
		UserID:               app.UserID,
		CamperFirstName:      app.CamperFirstName,
		CamperLastName:       app.CamperLastName,
		Status:               app.Status,
		CompletionPercentage: app.CompletionPercentage,
		CreatedAt:            app.CreatedAt,
		UpdatedAt:            app.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return model.(*models.Application), nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, note models.AdminNote) (*models.AdminNote, error) {
	model, err := s.notes.Create(ctx, noteDTO{
		ID:            note.ID,
		ApplicationID: note.ApplicationID,
		AdminID:       note.AdminID,
		Note:          note.Note,
		CreatedAt:     note.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return model.(*models.AdminNote), nil
}

func (s *PostgresStore) InApplicationTx(ctx context.Context, applicationID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, applicationID, fn)
		if !errors.Is(err, fault.ErrSerialization) {
			return err
		}

		s.log.Warn("application transaction lost a serialization race",
			"application_id", applicationID,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txBackoff):
		}
	}
	return fault.NewConflictError("the application was changed concurrently, please retry", err)
}

func (s *PostgresStore) runTx(ctx context.Context, applicationID uuid.UUID, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return store.TranslateError(err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	var app models.Application
	err = sqlTx.GetContext(ctx, &app,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, applicationID)
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}
	if err != nil {
		return store.TranslateError(err)
	}

	if err = fn(ctx, &postgresTx{tx: sqlTx, app: app}); err != nil {
		return err
	}

	return store.TranslateError(sqlTx.Commit())
}

func (s *PostgresStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return s.applications.Get(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
}

func (s *PostgresStore) GetApplicationByUser(ctx context.Context, userID uuid.UUID) (*models.Application, error) {
	return s.applications.Get(ctx, `SELECT `+applicationColumns+` FROM applications WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListApplications(ctx context.Context, filter models.ApplicationFilter, page, limit int) (*paginator.PaginatedResponse[models.ApplicationSummary], error) {
	var status any
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return s.summaries.PaginateQuery(ctx, listApplicationsQuery, []any{status, filter.Search}, page, limit)
}

func (s *PostgresStore) ListResponses(ctx context.Context, applicationID uuid.UUID) (map[uuid.UUID]models.Response, error) {
	var rows []responseRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT application_id, question_id, response_value, file_id, updated_at
		FROM application_responses WHERE application_id = $1`, applicationID)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return responseMap(rows), nil
}

func (s *PostgresStore) ListVotes(ctx context.Context, applicationID uuid.UUID) ([]models.Vote, error) {
	return selectVotes(ctx, s.db, applicationID)
}

func selectVotes(ctx context.Context, q sqlx.QueryerContext, applicationID uuid.UUID) ([]models.Vote, error) {
	votes := []models.Vote{}
	err := sqlx.SelectContext(ctx, q, &votes,
		`SELECT application_id, admin_id, admin_name, team, direction, created_at, updated_at
		FROM application_votes WHERE application_id = $1
		ORDER BY created_at, admin_id`, applicationID)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return votes, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, applicationID uuid.UUID) ([]models.AdminNote, error) {
	return s.notes.Select(ctx,
		`SELECT id, application_id, admin_id, note, created_at FROM admin_notes
		WHERE application_id = $1 ORDER BY created_at DESC`, applicationID)
}

func (s *PostgresStore) AdminExists(ctx context.Context, adminID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role IN ('admin', 'super_admin'))`, adminID)
	return exists, store.TranslateError(err)
}

const fileColumns = `id, application_id, file_name, file_size, file_type, storage_path, created_at`

func (s *PostgresStore) GetFile(ctx context.Context, fileID uuid.UUID) (*models.FileInfo, error) {
	var f models.FileInfo
	err := s.db.GetContext(ctx, &f, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return &f, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context, fileIDs []uuid.UUID) ([]models.FileInfo, error) {
	files := []models.FileInfo{}
	ids := make(pq.StringArray, len(fileIDs))
	for i, id := range fileIDs {
		ids[i] = id.String()
	}
	err := s.db.SelectContext(ctx, &files,
		`SELECT `+fileColumns+` FROM files WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return files, nil
}

type postgresTx struct {
	tx  *sqlx.Tx
	app models.Application
}

func (t *postgresTx) Application() models.Application {
	return t.app
}

func (t *postgresTx) SaveApplication(ctx context.Context, app models.Application) error {
	if app.ID != t.app.ID {
		return fault.NewInternalError("application does not belong to this transaction", nil)
	}

	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE applications SET
			camper_first_name = :camper_first_name,
			camper_last_name = :camper_last_name,
			status = :status,
			completion_percentage = :completion_percentage,
			updated_at = :updated_at,
			completed_at = :completed_at,
			accepted_at = :accepted_at,
			declined_at = :declined_at,
			paid_at = :paid_at
		WHERE id = :id`, app)
	if err != nil {
		return store.TranslateError(err)
	}

	t.app = app
	return nil
}

func (t *postgresTx) Responses(ctx context.Context) (map[uuid.UUID]models.Response, error) {
	var rows []responseRow
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT application_id, question_id, response_value, file_id, updated_at
		FROM application_responses WHERE application_id = $1`, t.app.ID)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return responseMap(rows), nil
}

func (t *postgresTx) UpsertResponse(ctx context.Context, r models.Response) error {
	var (
		text   sql.NullString
		fileID uuid.NullUUID
	)
	switch v := r.Value.(type) {
	case models.TextValue:
		text = sql.NullString{String: string(v), Valid: true}
	case models.FileRef:
		fileID = uuid.NullUUID{UUID: v.FileID, Valid: true}
	default:
		return fault.NewValidationError("response has no value", nil)
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO application_responses (application_id, question_id, response_value, file_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (application_id, question_id) DO UPDATE SET
			response_value = EXCLUDED.response_value,
			file_id = EXCLUDED.file_id,
			updated_at = EXCLUDED.updated_at`,
		t.app.ID, r.QuestionID, text, fileID, r.UpdatedAt)
	return store.TranslateError(err)
}

func (t *postgresTx) DeleteResponse(ctx context.Context, questionID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM application_responses WHERE application_id = $1 AND question_id = $2`,
		t.app.ID, questionID)
	return store.TranslateError(err)
}

func (t *postgresTx) ClearFileReferences(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	cleared := []uuid.UUID{}
	err := t.tx.SelectContext(ctx, &cleared, `
		DELETE FROM application_responses
		WHERE application_id = $1 AND file_id = $2
		RETURNING question_id`, t.app.ID, fileID)
	if err != nil {
		return nil, store.TranslateError(err)
	}
	return cleared, nil
}

func (t *postgresTx) CreateFile(ctx context.Context, f models.FileInfo) error {
	if f.ApplicationID != t.app.ID {
		return fault.NewInternalError("file does not belong to this transaction", nil)
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (:id, :application_id, :file_name, :file_size, :file_type, :storage_path, :created_at)`, f)
	return store.TranslateError(err)
}

func (t *postgresTx) FileBelongsToApplication(ctx context.Context, fileID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM files WHERE id = $1 AND application_id = $2)`, fileID, t.app.ID)
	return exists, store.TranslateError(err)
}

func (t *postgresTx) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM files WHERE id = $1 AND application_id = $2`, fileID, t.app.ID)
	if err != nil {
		return store.TranslateError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

func (t *postgresTx) UpsertVote(ctx context.Context, vote models.Vote) error {
	vote.ApplicationID = t.app.ID
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO application_votes (application_id, admin_id, admin_name, team, direction, created_at, updated_at)
		VALUES (:application_id, :admin_id, :admin_name, :team, :direction, :created_at, :updated_at)
		ON CONFLICT (application_id, admin_id) DO UPDATE SET
			admin_name = EXCLUDED.admin_name,
			team = EXCLUDED.team,
			direction = EXCLUDED.direction,
			updated_at = EXCLUDED.updated_at`, vote)
	return store.TranslateError(err)
}

func (t *postgresTx) Votes(ctx context.Context) ([]models.Vote, error) {
	return selectVotes(ctx, t.tx, t.app.ID)
}

var _ Store = (*PostgresStore)(nil)
