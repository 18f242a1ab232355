package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/paginator"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// MemoryStore keeps everything in process. Writes to one application are
// serialized by a per-application mutex and staged until fn succeeds.
type MemoryStore struct {
	mu        sync.RWMutex
	apps      map[uuid.UUID]models.Application
	byUser    map[uuid.UUID]uuid.UUID
	responses map[uuid.UUID]map[uuid.UUID]models.Response
	votes     map[uuid.UUID]map[uuid.UUID]models.Vote
	notes     map[uuid.UUID][]models.AdminNote
	files     map[uuid.UUID]models.FileInfo
	admins    map[uuid.UUID]struct{}

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:      map[uuid.UUID]models.Application{},
		byUser:    map[uuid.UUID]uuid.UUID{},
		responses: map[uuid.UUID]map[uuid.UUID]models.Response{},
		votes:     map[uuid.UUID]map[uuid.UUID]models.Vote{},
		notes:     map[uuid.UUID][]models.AdminNote{},
		files:     map[uuid.UUID]models.FileInfo{},
		admins:    map[uuid.UUID]struct{}{},
		locks:     map[uuid.UUID]*sync.Mutex{},
	}
}

// AddAdmin registers a known admin account.
func (s *MemoryStore) AddAdmin(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[id] = struct{}{}
}

// AddFile registers uploaded file metadata.
func (s *MemoryStore) AddFile(f models.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f
}

func (s *MemoryStore) lockFor(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) InApplicationTx(ctx context.Context, applicationID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.lockFor(applicationID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.begin(applicationID)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *MemoryStore) begin(applicationID uuid.UUID) (*memoryTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[applicationID]
	if !ok {
		return nil, fault.ErrNotFound
	}

	files := map[uuid.UUID]models.FileInfo{}
	for id, f := range s.files {
		if f.ApplicationID == applicationID {
			files[id] = f
		}
	}

	return &memoryTx{
		app:       app,
		responses: maps.Clone(s.responses[applicationID]),
		votes:     maps.Clone(s.votes[applicationID]),
		files:     files,
	}, nil
}

func (s *MemoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.app.ID
	s.apps[id] = tx.app
	s.responses[id] = tx.responses
	s.votes[id] = tx.votes
	for _, fileID := range tx.createdFiles {
		s.files[fileID] = tx.files[fileID]
	}
	for _, fileID := range tx.deletedFiles {
		delete(s.files, fileID)
	}
}

func (s *MemoryStore) CreateApplication(ctx context.Context, app models.Application) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[app.UserID]; exists {
		return nil, fault.ErrUniqueViolation
	}
	if _, exists := s.apps[app.ID]; exists {
		return nil, fault.ErrUniqueViolation
	}

	s.apps[app.ID] = app
	s.byUser[app.UserID] = app.ID
	return &app, nil
}

func (s *MemoryStore) CreateNote(ctx context.Context, note models.AdminNote) (*models.AdminNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[note.ApplicationID]; !ok {
		return nil, fault.ErrForeignKeyViolation
	}
	s.notes[note.ApplicationID] = append(s.notes[note.ApplicationID], note)
	return &note, nil
}

func (s *MemoryStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return &app, nil
}

func (s *MemoryStore) GetApplicationByUser(ctx context.Context, userID uuid.UUID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	app := s.apps[id]
	return &app, nil
}

func (s *MemoryStore) ListApplications(ctx context.Context, filter models.ApplicationFilter, page, limit int) (*paginator.PaginatedResponse[models.ApplicationSummary], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	summaries := []models.ApplicationSummary{}
	for _, app := range s.apps {
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		name := strings.ToLower(app.CamperFirstName + " " + app.CamperLastName)
		if search != "" && !strings.Contains(name, search) {
			continue
		}

		teams := approvingTeams(s.votes[app.ID])
		summaries = append(summaries, models.ApplicationSummary{
			ID:                   app.ID,
			UserID:               app.UserID,
			CamperFirstName:      app.CamperFirstName,
			CamperLastName:       app.CamperLastName,
			Status:               app.Status,
			CompletionPercentage: app.CompletionPercentage,
			UpdatedAt:            app.UpdatedAt,
			ApprovalCount:        len(teams),
			ApprovedByTeams:      teams,
		})
	}

	slices.SortFunc(summaries, func(a, b models.ApplicationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return paginator.PaginateSlice(summaries, page, limit), nil
}

func approvingTeams(votes map[uuid.UUID]models.Vote) []string {
	seen := map[string]struct{}{}
	for _, v := range votes {
		if v.Direction == models.VoteApprove {
			seen[v.Team] = struct{}{}
		}
	}
	teams := slices.Sorted(maps.Keys(seen))
	if teams == nil {
		teams = []string{}
	}
	return teams
}

func (s *MemoryStore) ListResponses(ctx context.Context, applicationID uuid.UUID) (map[uuid.UUID]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := maps.Clone(s.responses[applicationID])
	if out == nil {
		out = map[uuid.UUID]models.Response{}
	}
	return out, nil
}

func (s *MemoryStore) ListVotes(ctx context.Context, applicationID uuid.UUID) ([]models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedVotes(s.votes[applicationID]), nil
}

func sortedVotes(votes map[uuid.UUID]models.Vote) []models.Vote {
	out := slices.Collect(maps.Values(votes))
	slices.SortFunc(out, func(a, b models.Vote) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.AdminID.String(), b.AdminID.String())
	})
	if out == nil {
		out = []models.Vote{}
	}
	return out
}

func (s *MemoryStore) ListNotes(ctx context.Context, applicationID uuid.UUID) ([]models.AdminNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.notes[applicationID])
	slices.SortStableFunc(out, func(a, b models.AdminNote) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if out == nil {
		out = []models.AdminNote{}
	}
	return out, nil
}

func (s *MemoryStore) AdminExists(ctx context.Context, adminID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[adminID]
	return ok, nil
}

func (s *MemoryStore) GetFile(ctx context.Context, fileID uuid.UUID) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[fileID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return &f, nil
}

func (s *MemoryStore) ListFiles(ctx context.Context, fileIDs []uuid.UUID) ([]models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FileInfo{}
	for _, id := range fileIDs {
		if f, ok := s.files[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

type memoryTx struct {
	app          models.Application
	responses    map[uuid.UUID]models.Response
	votes        map[uuid.UUID]models.Vote
	files        map[uuid.UUID]models.FileInfo
	createdFiles []uuid.UUID
	deletedFiles []uuid.UUID
}

func (t *memoryTx) Application() models.Application {
	return t.app
}

func (t *memoryTx) SaveApplication(ctx context.Context, app models.Application) error {
	if app.ID != t.app.ID {
		return fault.NewInternalError("application does not belong to this transaction", nil)
	}
	t.app = app
	return nil
}

func (t *memoryTx) Responses(ctx context.Context) (map[uuid.UUID]models.Response, error) {
	return maps.Clone(t.ensureResponses()), nil
}

func (t *memoryTx) ensureResponses() map[uuid.UUID]models.Response {
	if t.responses == nil {
		t.responses = map[uuid.UUID]models.Response{}
	}
	return t.responses
}

func (t *memoryTx) UpsertResponse(ctx context.Context, r models.Response) error {
	r.ApplicationID = t.app.ID
	t.ensureResponses()[r.QuestionID] = r
	return nil
}

func (t *memoryTx) DeleteResponse(ctx context.Context, questionID uuid.UUID) error {
	delete(t.ensureResponses(), questionID)
	return nil
}

func (t *memoryTx) ClearFileReferences(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	var cleared []uuid.UUID
	for qid, r := range t.ensureResponses() {
		if id, ok := r.FileID(); ok && id == fileID {
			cleared = append(cleared, qid)
		}
	}
	for _, qid := range cleared {
		delete(t.responses, qid)
	}
	slices.SortFunc(cleared, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return cleared, nil
}

func (t *memoryTx) CreateFile(ctx context.Context, f models.FileInfo) error {
	if f.ApplicationID != t.app.ID {
		return fault.NewInternalError("file does not belong to this transaction", nil)
	}
	if _, ok := t.files[f.ID]; ok {
		return fault.ErrUniqueViolation
	}
	t.files[f.ID] = f
	t.createdFiles = append(t.createdFiles, f.ID)
	return nil
}

func (t *memoryTx) FileBelongsToApplication(ctx context.Context, fileID uuid.UUID) (bool, error) {
	_, ok := t.files[fileID]
	return ok && !slices.Contains(t.deletedFiles, fileID), nil
}

func (t *memoryTx) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	if _, ok := t.files[fileID]; !ok {
		return fault.ErrNotFound
	}
	t.deletedFiles = append(t.deletedFiles, fileID)
	return nil
}

func (t *memoryTx) UpsertVote(ctx context.Context, vote models.Vote) error {
	if t.votes == nil {
		t.votes = map[uuid.UUID]models.Vote{}
	}
	if prev, ok := t.votes[vote.AdminID]; ok {
		vote.CreatedAt = prev.CreatedAt
	}
	vote.ApplicationID = t.app.ID
	t.votes[vote.AdminID] = vote
	return nil
}

func (t *memoryTx) Votes(ctx context.Context) ([]models.Vote, error) {
	return sortedVotes(t.votes), nil
}
