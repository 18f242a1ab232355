package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/stretchr/testify/require"
)

var (
	camperInfoID     = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	postAcceptanceID = uuid.MustParse("00000000-0000-0000-0000-00000000a002")

	qNickname       = uuid.MustParse("00000000-0000-0000-0000-00000000b001")
	qHasAllergies   = uuid.MustParse("00000000-0000-0000-0000-00000000b002")
	qAllergyDetails = uuid.MustParse("00000000-0000-0000-0000-00000000b003")
	qPhoto          = uuid.MustParse("00000000-0000-0000-0000-00000000b004")
	qShirtSize      = uuid.MustParse("00000000-0000-0000-0000-00000000b005")
	qWaiver         = uuid.MustParse("00000000-0000-0000-0000-00000000b006")
)

func ptr[T any](v T) *T { return &v }

// testSections is a two-section catalog: camper info with one conditional question
// and a post-acceptance section.
func testSections() []models.Section {
	return []models.Section{
		{
			ID:                      camperInfoID,
			Title:                   "Camper Info",
			OrderIndex:              1,
			IsActive:                true,
			VisibleBeforeAcceptance: true,
			Questions: []models.Question{
				{ID: qNickname, SectionID: camperInfoID, Text: "Nickname", Type: models.QuestionText, IsRequired: true, IsActive: true, OrderIndex: 1},
				{ID: qHasAllergies, SectionID: camperInfoID, Text: "Any allergies?", Type: models.QuestionDropdown, Options: []string{"Yes", "No"}, IsRequired: true, IsActive: true, OrderIndex: 2},
				{ID: qAllergyDetails, SectionID: camperInfoID, Text: "Describe them", Type: models.QuestionTextarea, IsRequired: true, IsActive: true, OrderIndex: 3, ShowIfQuestion: ptr(qHasAllergies), ShowIfAnswer: ptr("Yes")},
				{ID: qPhoto, SectionID: camperInfoID, Text: "Photo", Type: models.QuestionProfilePicture, IsActive: true, OrderIndex: 4},
			},
		},
		{
			ID:         postAcceptanceID,
			Title:      "Before Camp",
			OrderIndex: 2,
			IsActive:   true,
			Questions: []models.Question{
				{ID: qShirtSize, SectionID: postAcceptanceID, Text: "T-shirt size", Type: models.QuestionDropdown, Options: []string{"S", "M", "L"}, IsRequired: true, IsActive: true, OrderIndex: 1},
				{ID: qWaiver, SectionID: postAcceptanceID, Text: "Waiver", Type: models.QuestionFileUpload, IsActive: true, OrderIndex: 2},
			},
		},
	}
}

type staticCatalog struct {
	sections []models.Section
	err      error
}

func (c staticCatalog) Sections(ctx context.Context) ([]models.Section, error) {
	return c.sections, c.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []models.StatusChange
}

func (n *recordingNotifier) Notify(changes ...models.StatusChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, changes...)
}

func (n *recordingNotifier) Changes() []models.StatusChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.StatusChange(nil), n.changes...)
}

type fakeObjects struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
	failing bool
}

func (o *fakeObjects) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing {
		return context.DeadlineExceeded
	}
	if o.stored == nil {
		o.stored = map[string][]byte{}
	}
	o.stored[path] = data
	return nil
}

func (o *fakeObjects) Stored() map[string][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string][]byte, len(o.stored))
	for k, v := range o.stored {
		out[k] = v
	}
	return out
}

func (o *fakeObjects) PresignedURL(ctx context.Context, path string) (string, error) {
	return "https://files.test/" + path, nil
}

func (o *fakeObjects) Remove(ctx context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing {
		return context.DeadlineExceeded
	}
	o.removed = append(o.removed, path)
	return nil
}

type fixture struct {
	store    *repository.MemoryStore
	notifier *recordingNotifier
	objects  *fakeObjects
	deps     Deps
	now      time.Time

	applications ApplicationService
	approvals    ApprovalService
	files        FileService
	reviews      ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		objects:  &fakeObjects{},
		now:      time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.deps = Deps{
		Store:    f.store,
		Catalog:  staticCatalog{sections: testSections()},
		Notifier: f.notifier,
		Objects:  f.objects,
		Now:      func() time.Time { return f.now },
	}
	f.applications = NewApplicationService(f.deps)
	f.approvals = NewApprovalService(f.deps)
	f.files = NewFileService(f.deps)
	f.reviews = NewReviewService(f.deps)
	return f
}

func applicant() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: models.RoleUser}
}

func (f *fixture) admin(team string) models.Identity {
	id := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin, Team: team, Name: "Admin " + team}
	f.store.AddAdmin(id.UserID)
	return id
}

// seed stores an application for owner directly in status.
func (f *fixture) seed(t *testing.T, owner models.Identity, status models.ApplicationStatus) models.Application {
	t.Helper()
	app, err := f.store.CreateApplication(context.Background(), models.Application{
		ID:              uuid.New(),
		UserID:          owner.UserID,
		CamperFirstName: "Ada",
		CamperLastName:  "Lovelace",
		Status:          status,
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	})
	require.NoError(t, err)
	return *app
}

func textAnswer(q uuid.UUID, v string) models.ResponseInput {
	return models.ResponseInput{QuestionID: q, ResponseValue: &v}
}

func fileAnswer(q uuid.UUID, id uuid.UUID) models.ResponseInput {
	return models.ResponseInput{QuestionID: q, FileID: &id}
}
