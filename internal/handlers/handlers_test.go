package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/catalog"
	"github.com/paulexconde/camperportal/internal/filestore"
	"github.com/paulexconde/camperportal/internal/identity"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/internal/services"
	"github.com/paulexconde/camperportal/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testAPIKey = "payments-key"
)

const testCatalog = `
sections:
  - id: camper-info
    title: Camper Info
    order_index: 1
    questions:
      - id: nickname
        text: Nickname
        type: text
        required: true
      - id: shirt
        text: T-shirt size
        type: dropdown
        required: true
        options: ["S", "M", "L"]
      - id: photo
        text: Camper photo
        type: profile_picture
`

type testServer struct {
	app      *fiber.App
	store    *repository.MemoryStore
	verifier *identity.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	sections, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	deps := services.Deps{
		Store:   store,
		Catalog: catalog.NewStaticProvider(sections),
		Objects: filestore.NewStaticStore("https://files.test"),
	}
	verifier := identity.NewVerifier(testSecret, "")

	app := NewApp(RouterDeps{
		Applications:  services.NewApplicationService(deps),
		Approvals:     services.NewApprovalService(deps),
		Files:         services.NewFileService(deps),
		Reviews:       services.NewReviewService(deps),
		Verifier:      verifier,
		PaymentAPIKey: testAPIKey,
	})

	return &testServer{app: app, store: store, verifier: verifier}
}

func (s *testServer) user() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: models.RoleUser}
}

func (s *testServer) admin(team string) models.Identity {
	id := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin, Team: team, Name: "Admin " + team}
	s.store.AddAdmin(id.UserID)
	return id
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   APIError        `json:"error"`
}

// call sends the request as caller; a nil caller sends no token.
func (s *testServer) call(t *testing.T, caller *models.Identity, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		token, err := s.verifier.Issue(*caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) createApplication(t *testing.T, caller models.Identity) models.Application {
	t.Helper()
	code, env := s.call(t, &caller, http.MethodPost, "/applications", map[string]string{
		"camper_first_name": "Ada",
		"camper_last_name":  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, code, env.Error.Message)
	return decode[models.Application](t, env)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	code, env := s.call(t, nil, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, env := s.call(t, nil, http.MethodGet, "/applications/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, _ = s.call(t, nil, http.MethodGet, "/applications/me", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestApplicationLifecycle(t *testing.T) {
	s := newTestServer(t)
	user := s.user()

	app := s.createApplication(t, user)
	assert.Equal(t, models.StatusInProgress, app.Status)

	code, env := s.call(t, &user, http.MethodPost, "/applications", map[string]string{
		"camper_first_name": "Ada",
		"camper_last_name":  "Lovelace",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	nickname := catalog.ParseID("nickname")
	shirt := catalog.ParseID("shirt")

	// A bare list of responses.
	code, env = s.call(t, &user, http.MethodPatch, "/applications/"+app.ID.String()+"/responses", []map[string]any{
		{"question_id": nickname, "response_value": "Ada"},
	})
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	res := decode[services.SaveResult](t, env)
	assert.Equal(t, 50, res.Progress.OverallPercentage)

	// The object form with a camper name.
	code, env = s.call(t, &user, http.MethodPatch, "/applications/"+app.ID.String()+"/responses", map[string]any{
		"camper_first_name": "Augusta",
		"responses":         []map[string]any{{"question_id": shirt, "response_value": "M"}},
	})
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	res = decode[services.SaveResult](t, env)
	assert.True(t, res.StatusChanged)
	assert.Equal(t, models.StatusUnderReview, res.Application.Status)
	assert.Equal(t, "Augusta", res.Application.CamperFirstName)

	code, env = s.call(t, &user, http.MethodGet, "/applications/me", nil)
	require.Equal(t, http.StatusOK, code)
	mine := decode[struct {
		ID        uuid.UUID `json:"id"`
		Responses []struct {
			QuestionID    uuid.UUID `json:"question_id"`
			ResponseValue *string   `json:"response_value"`
		} `json:"responses"`
	}](t, env)
	assert.Equal(t, app.ID, mine.ID)
	assert.Len(t, mine.Responses, 2)

	code, env = s.call(t, &user, http.MethodGet, "/applications/"+app.ID.String()+"/progress", nil)
	require.Equal(t, http.StatusOK, code)
	progress := decode[models.ApplicationProgress](t, env)
	assert.Equal(t, 100, progress.OverallPercentage)
}

func TestSaveResponses_Errors(t *testing.T) {
	s := newTestServer(t)
	user := s.user()
	app := s.createApplication(t, user)
	path := "/applications/" + app.ID.String() + "/responses"

	code, env := s.call(t, &user, http.MethodPatch, path, []map[string]any{
		{"question_id": uuid.New(), "response_value": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	stranger := s.user()
	code, env = s.call(t, &stranger, http.MethodPatch, path, []map[string]any{})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = s.call(t, &user, http.MethodPatch, "/applications/not-a-uuid/responses", []map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = s.call(t, &user, http.MethodPatch, path, `{"responses": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestVotingFlow(t *testing.T) {
	s := newTestServer(t)
	user := s.user()
	app := s.createApplication(t, user)
	ctx := context.Background()

	code, env := s.call(t, &user, http.MethodPost, "/applications/"+app.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	medic := s.admin("medical")
	code, env = s.call(t, &medic, http.MethodPost, "/applications/"+app.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusConflict, code, "still in progress")
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	err := s.store.InApplicationTx(ctx, app.ID, func(ctx context.Context, tx repository.Tx) error {
		current := tx.Application()
		current.Status = models.StatusUnderReview
		return tx.SaveApplication(ctx, current)
	})
	require.NoError(t, err)

	var last models.VoteResult
	for _, team := range []string{"medical", "operations", "admissions"} {
		admin := s.admin(team)
		code, env = s.call(t, &admin, http.MethodPost, "/applications/"+app.ID.String()+"/approve", nil)
		require.Equal(t, http.StatusOK, code, env.Error.Message)
		last = decode[models.VoteResult](t, env)
	}
	assert.True(t, last.AutoAccepted)
	assert.Equal(t, models.StatusAccepted, last.Status)

	code, env = s.call(t, &medic, http.MethodGet, "/applications/"+app.ID.String()+"/approval-status", nil)
	require.Equal(t, http.StatusOK, code)
	status := decode[models.ApprovalStatus](t, env)
	assert.Equal(t, 3, status.ApprovalCount)
	assert.Len(t, status.Teams, 3)

	code, _ = s.call(t, nil, http.MethodPost, "/internal/applications/"+app.ID.String()+"/paid", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.call(t, nil, http.MethodPost, "/internal/applications/"+app.ID.String()+"/paid", nil, "X-API-Key", testAPIKey)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Equal(t, models.StatusPaid, decode[models.Application](t, env).Status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.user()
	app := s.createApplication(t, user)
	admin := s.admin("medical")

	code, env := s.call(t, &user, http.MethodGet, "/admin/applications", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.call(t, &admin, http.MethodGet, "/admin/applications?status=in_progress&page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	list := decode[struct {
		Items      []models.ApplicationSummary `json:"items"`
		TotalItems int                         `json:"total_items"`
	}](t, env)
	assert.Equal(t, 1, list.TotalItems)
	require.Len(t, list.Items, 1)
	assert.Equal(t, app.ID, list.Items[0].ID)

	code, env = s.call(t, &admin, http.MethodGet, "/admin/applications?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	code, _ = s.call(t, &admin, http.MethodGet, "/admin/applications/"+app.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.call(t, &admin, http.MethodPost, "/admin/applications/"+app.ID.String()+"/notes", map[string]string{"note": "looks good"})
	require.Equal(t, http.StatusCreated, code, env.Error.Message)

	code, env = s.call(t, &admin, http.MethodGet, "/admin/applications/"+app.ID.String()+"/notes", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.AdminNote](t, env), 1)

	code, env = s.call(t, &admin, http.MethodPost, "/admin/applications/"+app.ID.String()+"/decision/decline", nil)
	assert.Equal(t, http.StatusConflict, code, "only applications under review can be declined")
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	code, env = s.call(t, &admin, http.MethodPatch, "/admin/applications/"+app.ID.String()+"/responses", []map[string]any{
		{"question_id": catalog.ParseID("nickname"), "response_value": "Ada"},
		{"question_id": catalog.ParseID("shirt"), "response_value": "L"},
	})
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Equal(t, models.StatusUnderReview, decode[services.SaveResult](t, env).Application.Status)

	code, env = s.call(t, &admin, http.MethodPost, "/admin/applications/"+app.ID.String()+"/reevaluate", nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.False(t, decode[models.VoteResult](t, env).AutoAccepted)

	code, env = s.call(t, &admin, http.MethodPost, "/admin/applications/"+app.ID.String()+"/decision/decline", nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Equal(t, models.StatusDeclined, decode[models.Application](t, env).Status)
}

func TestFileRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.user()
	app := s.createApplication(t, user)

	photo := models.FileInfo{ID: uuid.New(), ApplicationID: app.ID, Filename: "photo.png", StoragePath: app.ID.String() + "/photo.png"}
	s.store.AddFile(photo)

	code, env := s.call(t, &user, http.MethodGet, "/files/"+photo.ID.String(), nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	got := decode[models.FileInfo](t, env)
	assert.Equal(t, "https://files.test/"+app.ID.String()+"/photo.png", got.URL)

	code, env = s.call(t, &user, http.MethodPost, "/files/batch", map[string]any{"file_ids": []uuid.UUID{photo.ID, uuid.New()}})
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Len(t, decode[[]models.FileInfo](t, env), 1)

	stranger := s.user()
	code, _ = s.call(t, &stranger, http.MethodDelete, "/files/"+photo.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.call(t, &user, http.MethodDelete, "/files/"+photo.ID.String(), nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)

	code, _ = s.call(t, &user, http.MethodGet, "/files/"+photo.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// uploadForm builds a multipart body; an empty filename leaves the file part out.
func uploadForm(t *testing.T, fields map[string]string, filename, contentType string, content []byte) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.String(), w.FormDataContentType()
}

func TestUploadRoute(t *testing.T) {
	s := newTestServer(t)
	user := s.user()
	app := s.createApplication(t, user)
	fields := map[string]string{
		"application_id": app.ID.String(),
		"question_id":    catalog.ParseID("photo").String(),
	}

	body, contentType := uploadForm(t, fields, "me.png", "image/png", []byte("png!"))
	code, env := s.call(t, &user, http.MethodPost, "/files/upload", body, "Content-Type", contentType)
	require.Equal(t, http.StatusCreated, code, env.Error.Message)
	res := decode[services.UploadResult](t, env)
	assert.Equal(t, "me.png", res.File.Filename)
	assert.Equal(t, "image/png", res.File.ContentType)
	assert.Equal(t, int64(4), res.File.Size)
	assert.Equal(t, models.StatusInProgress, res.Application.Status)

	code, env = s.call(t, &user, http.MethodGet, "/files/"+res.File.ID.String(), nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Contains(t, decode[models.FileInfo](t, env).URL, "https://files.test/"+app.ID.String()+"/")

	code, env = s.call(t, &user, http.MethodGet, "/applications/me", nil)
	require.Equal(t, http.StatusOK, code)
	mine := decode[struct {
		Responses []struct {
			QuestionID uuid.UUID  `json:"question_id"`
			FileID     *uuid.UUID `json:"file_id"`
		} `json:"responses"`
	}](t, env)
	require.Len(t, mine.Responses, 1)
	require.NotNil(t, mine.Responses[0].FileID)
	assert.Equal(t, res.File.ID, *mine.Responses[0].FileID)

	body, contentType = uploadForm(t, fields, "", "", nil)
	code, env = s.call(t, &user, http.MethodPost, "/files/upload", body, "Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	body, contentType = uploadForm(t, fields, "setup.exe", "application/octet-stream", []byte("MZ"))
	code, env = s.call(t, &user, http.MethodPost, "/files/upload", body, "Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	stranger := s.user()
	body, contentType = uploadForm(t, fields, "me.png", "image/png", []byte("png!"))
	code, _ = s.call(t, &stranger, http.MethodPost, "/files/upload", body, "Content-Type", contentType)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSectionsRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.user()

	code, env := s.call(t, &user, http.MethodGet, "/applications/sections", nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	sections := decode[[]models.SectionView](t, env)
	require.Len(t, sections, 1)
	assert.Equal(t, "Camper Info", sections[0].Title)
	require.Len(t, sections[0].Questions, 3)
	assert.Equal(t, catalog.ParseID("nickname"), sections[0].Questions[0].ID)
	for _, q := range sections[0].Questions {
		assert.True(t, q.IsVisible, q.Text)
	}

	app := s.createApplication(t, user)
	code, env = s.call(t, &user, http.MethodGet, "/applications/"+app.ID.String()+"/sections", nil)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Len(t, decode[[]models.SectionView](t, env), 1)

	stranger := s.user()
	code, _ = s.call(t, &stranger, http.MethodGet, "/applications/"+app.ID.String()+"/sections", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWriteError_ConflictIsRetryable(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		return writeError(c, logger.NewNop(), fault.NewConflictError("changed concurrently", nil))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "CONFLICT", env.Error.Code)
}
