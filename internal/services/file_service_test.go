package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) upload(app models.Application, name string) models.FileInfo {
	info := models.FileInfo{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		Filename:      name,
		StoragePath:   app.ID.String() + "/" + name,
		CreatedAt:     f.now,
	}
	f.store.AddFile(info)
	return info
}

func TestGetFile(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	photo := f.upload(app, "photo.png")
	ctx := context.Background()

	got, err := f.files.GetFile(ctx, user, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/"+photo.StoragePath, got.URL)

	got, err = f.files.GetFile(ctx, f.admin("medical"), photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.ID, got.ID)

	_, err = f.files.GetFile(ctx, applicant(), photo.ID)
	assert.True(t, fault.IsNotFound(err))

	_, err = f.files.GetFile(ctx, user, uuid.New())
	assert.True(t, fault.IsNotFound(err))
}

func TestGetFilesBatch(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	other := f.seed(t, applicant(), models.StatusInProgress)

	a := f.upload(app, "a.png")
	b := f.upload(app, "b.pdf")
	foreign := f.upload(other, "c.png")

	got, err := f.files.GetFilesBatch(context.Background(), user, []uuid.UUID{b.ID, foreign.ID, uuid.New(), a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
	for _, file := range got {
		assert.NotEmpty(t, file.URL)
	}

	got, err = f.files.GetFilesBatch(context.Background(), f.admin("medical"), []uuid.UUID{foreign.ID, a.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.files.GetFilesBatch(context.Background(), user, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeleteFile_ClearsAnswersAndRecomputes(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	photo := f.upload(app, "photo.png")
	ctx := context.Background()

	_, err := f.applications.SaveResponses(ctx, user, app.ID, SaveResponsesInput{
		Responses: []models.ResponseInput{textAnswer(qNickname, "Ada"), fileAnswer(qPhoto, photo.ID)},
	})
	require.NoError(t, err)

	res, err := f.files.DeleteFile(ctx, user, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Progress.OverallPercentage)

	responses, err := f.store.ListResponses(ctx, app.ID)
	require.NoError(t, err)
	assert.NotContains(t, responses, qPhoto)
	assert.Contains(t, responses, qNickname)

	_, err = f.store.GetFile(ctx, photo.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.Equal(t, []string{photo.StoragePath}, f.objects.removed)

	_, err = f.files.DeleteFile(ctx, user, photo.ID)
	assert.True(t, fault.IsNotFound(err))
}

func TestDeleteFile_TerminalLock(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusAccepted)
	photo := f.upload(app, "photo.png")
	waiver := f.upload(app, "waiver.pdf")
	admin := f.admin("medical")
	ctx := context.Background()

	_, err := f.applications.AdminSaveResponses(ctx, admin, app.ID, SaveResponsesInput{
		Responses: []models.ResponseInput{fileAnswer(qPhoto, photo.ID), fileAnswer(qWaiver, waiver.ID)},
	})
	require.NoError(t, err)

	_, err = f.files.DeleteFile(ctx, user, photo.ID)
	assert.True(t, fault.IsInvalidState(err))

	responses, err := f.store.ListResponses(ctx, app.ID)
	require.NoError(t, err)
	assert.Contains(t, responses, qPhoto, "rejected delete leaves the answer")

	_, err = f.files.DeleteFile(ctx, user, waiver.ID)
	require.NoError(t, err)

	_, err = f.files.DeleteFile(ctx, admin, photo.ID)
	require.NoError(t, err)
}

func TestDeleteFile_RemoveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	photo := f.upload(app, "photo.png")
	f.objects.failing = true

	_, err := f.files.DeleteFile(context.Background(), user, photo.ID)
	require.NoError(t, err)

	_, err = f.store.GetFile(context.Background(), photo.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestDeleteFile_ForeignCaller(t *testing.T) {
	f := newFixture(t)
	app := f.seed(t, applicant(), models.StatusInProgress)
	photo := f.upload(app, "photo.png")

	_, err := f.files.DeleteFile(context.Background(), applicant(), photo.ID)
	assert.True(t, fault.IsNotFound(err))

	_, err = f.store.GetFile(context.Background(), photo.ID)
	assert.NoError(t, err)
}

func pngUpload(app models.Application, q uuid.UUID) UploadInput {
	return UploadInput{
		ApplicationID: app.ID,
		QuestionID:    q,
		Filename:      "me.PNG",
		ContentType:   "image/png",
		Size:          4,
		Body:          strings.NewReader("png!"),
	}
}

func TestUpload_RequiredFileCompletesApplication(t *testing.T) {
	f := newFixture(t)
	sections := testSections()
	sections[0].Questions[3].IsRequired = true
	f.deps.Catalog = staticCatalog{sections: sections}
	f.applications = NewApplicationService(f.deps)
	f.files = NewFileService(f.deps)

	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	ctx := context.Background()

	res, err := f.applications.SaveResponses(ctx, user, app.ID, SaveResponsesInput{
		Responses: []models.ResponseInput{textAnswer(qNickname, "Ada"), textAnswer(qHasAllergies, "No")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, res.Application.Status)

	up, err := f.files.Upload(ctx, user, pngUpload(app, qPhoto))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, up.Application.Status)
	assert.True(t, up.StatusChanged)
	assert.Equal(t, 100, up.Progress.OverallPercentage)
	assert.Equal(t, "me.PNG", up.File.Filename)
	assert.Equal(t, app.ID.String()+"/"+qPhoto.String()+"/"+up.File.ID.String()+".png", up.File.StoragePath)
	assert.Equal(t, []byte("png!"), f.objects.Stored()[up.File.StoragePath])

	stored, err := f.store.GetFile(ctx, up.File.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, stored.ApplicationID)
	assert.Equal(t, "image/png", stored.ContentType)

	responses, err := f.store.ListResponses(ctx, app.ID)
	require.NoError(t, err)
	fileID, ok := responses[qPhoto].FileID()
	require.True(t, ok)
	assert.Equal(t, up.File.ID, fileID)

	require.Len(t, f.notifier.Changes(), 1)
	assert.Equal(t, models.StatusUnderReview, f.notifier.Changes()[0].To)
}

func TestUpload_PostAcceptanceFile(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusAccepted)
	ctx := context.Background()

	in := pngUpload(app, qWaiver)
	in.Filename, in.ContentType = "waiver.pdf", "application/pdf"
	up, err := f.files.Upload(ctx, user, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, up.Application.Status)

	_, err = f.files.Upload(ctx, user, pngUpload(app, qPhoto))
	assert.True(t, fault.IsInvalidState(err), "camper info is locked after acceptance")
}

func TestUpload_Rejections(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	declined := f.seed(t, applicant(), models.StatusDeclined)
	declinedOwner := models.Identity{UserID: declined.UserID, Role: models.RoleUser}
	ctx := context.Background()

	tests := []struct {
		name   string
		caller models.Identity
		in     func() UploadInput
		check  func(error) bool
	}{
		{
			name:   "extension not allowed",
			caller: user,
			in: func() UploadInput {
				in := pngUpload(app, qPhoto)
				in.Filename = "setup.exe"
				return in
			},
			check: fault.IsValidation,
		},
		{
			name:   "too large",
			caller: user,
			in: func() UploadInput {
				in := pngUpload(app, qPhoto)
				in.Size = DefaultMaxFileSize + 1
				return in
			},
			check: fault.IsValidation,
		},
		{
			name:   "empty",
			caller: user,
			in: func() UploadInput {
				in := pngUpload(app, qPhoto)
				in.Size = 0
				return in
			},
			check: fault.IsValidation,
		},
		{
			name:   "text question",
			caller: user,
			in:     func() UploadInput { return pngUpload(app, qNickname) },
			check:  fault.IsValidation,
		},
		{
			name:   "unknown question",
			caller: user,
			in:     func() UploadInput { return pngUpload(app, uuid.New()) },
			check:  fault.IsValidation,
		},
		{
			name:   "someone else's application",
			caller: applicant(),
			in:     func() UploadInput { return pngUpload(app, qPhoto) },
			check:  fault.IsNotFound,
		},
		{
			name:   "declined application",
			caller: declinedOwner,
			in:     func() UploadInput { return pngUpload(declined, qWaiver) },
			check:  fault.IsInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.files.Upload(ctx, tt.caller, tt.in())
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	assert.Empty(t, f.objects.Stored(), "rejected uploads never reach the bucket")
	responses, err := f.store.ListResponses(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestUpload_StorageFailure(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusInProgress)
	f.objects.failing = true

	_, err := f.files.Upload(context.Background(), user, pngUpload(app, qPhoto))
	assert.True(t, fault.IsInternal(err))

	responses, err := f.store.ListResponses(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestDeleteFile_DeclinedIsLocked(t *testing.T) {
	f := newFixture(t)
	user := applicant()
	app := f.seed(t, user, models.StatusDeclined)
	waiver := f.upload(app, "waiver.pdf")
	ctx := context.Background()

	_, err := f.applications.AdminSaveResponses(ctx, f.admin("medical"), app.ID, SaveResponsesInput{
		Responses: []models.ResponseInput{fileAnswer(qWaiver, waiver.ID)},
	})
	require.NoError(t, err)

	_, err = f.files.DeleteFile(ctx, user, waiver.ID)
	assert.True(t, fault.IsInvalidState(err))

	_, err = f.store.GetFile(ctx, waiver.ID)
	assert.NoError(t, err)
}
