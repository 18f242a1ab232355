package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxFileSize = 10 << 20

var DefaultFileTypes = []string{".pdf", ".docx", ".doc", ".jpg", ".jpeg", ".png"}

// Object storage behind uploaded files.
type ObjectStore interface {
	// PresignedURL returns a short-lived download URL for the object at path.
	PresignedURL(ctx context.Context, path string) (string, error)
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, path string) error
}

type UploadInput struct {
	ApplicationID uuid.UUID
	QuestionID    uuid.UUID
	Filename      string
	ContentType   string
	Size          int64
	Body          io.Reader
}

type UploadResult struct {
	File models.FileInfo `json:"file"`
	SaveResult
}

type FileService interface {
	// Upload stores the object, records the file and answers the question with it.
	Upload(ctx context.Context, caller models.Identity, in UploadInput) (*UploadResult, error)
	GetFile(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.FileInfo, error)
	// GetFilesBatch returns the files the caller may read, in request order. Unknown
	// or foreign ids are omitted.
	GetFilesBatch(ctx context.Context, caller models.Identity, ids []uuid.UUID) ([]models.FileInfo, error)
	// DeleteFile clears every answer referencing the file, recomputes progress and
	// removes the stored object.
	DeleteFile(ctx context.Context, caller models.Identity, id uuid.UUID) (*SaveResult, error)
}

type fileServiceImpl struct {
	*core
}

func NewFileService(d Deps) FileService {
	return &fileServiceImpl{core: newCore(d)}
}

func (s *fileServiceImpl) GetFile(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.FileInfo, error) {
	file, err := s.Store.GetFile(ctx, id)
	if err != nil {
		return nil, notFound(err, "file not found")
	}

	if _, err := s.loadApplication(ctx, caller, file.ApplicationID); err != nil {
		if fault.IsNotFound(err) {
			return nil, fault.NewNotFoundError("file not found", nil)
		}
		return nil, err
	}

	if file.URL, err = s.Objects.PresignedURL(ctx, file.StoragePath); err != nil {
		return nil, fault.NewInternalError("failed to sign file url", err)
	}
	return file, nil
}

func (s *fileServiceImpl) GetFilesBatch(ctx context.Context, caller models.Identity, ids []uuid.UUID) ([]models.FileInfo, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []models.FileInfo{}, nil
	}

	found, err := s.Store.ListFiles(ctx, unique)
	if err != nil {
		return nil, err
	}

	files, err := s.readable(ctx, caller, found)
	if err != nil {
		return nil, err
	}

	order := make(map[uuid.UUID]int, len(unique))
	for i, id := range unique {
		order[id] = i
	}
	slices.SortFunc(files, func(a, b models.FileInfo) int { return order[a.ID] - order[b.ID] })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.FileBatchConcurrency)
	for i := range files {
		g.Go(func() error {
			url, err := s.Objects.PresignedURL(gctx, files[i].StoragePath)
			if err != nil {
				return err
			}
			files[i].URL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fault.NewInternalError("failed to sign file urls", err)
	}

	return files, nil
}

// readable drops the files whose application the caller cannot see.
func (s *fileServiceImpl) readable(ctx context.Context, caller models.Identity, files []models.FileInfo) ([]models.FileInfo, error) {
	if caller.IsAdmin() {
		return files, nil
	}

	allowed := map[uuid.UUID]bool{}
	out := make([]models.FileInfo, 0, len(files))
	for _, f := range files {
		ok, checked := allowed[f.ApplicationID]
		if !checked {
			app, err := s.Store.GetApplication(ctx, f.ApplicationID)
			switch {
			case errors.Is(err, fault.ErrNotFound):
				ok = false
			case err != nil:
				return nil, err
			default:
				ok = app.UserID == caller.UserID
			}
			allowed[f.ApplicationID] = ok
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fileServiceImpl) DeleteFile(ctx context.Context, caller models.Identity, id uuid.UUID) (*SaveResult, error) {
	file, err := s.Store.GetFile(ctx, id)
	if err != nil {
		return nil, notFound(err, "file not found")
	}
	if _, err := s.loadApplication(ctx, caller, file.ApplicationID); err != nil {
		if fault.IsNotFound(err) {
			return nil, fault.NewNotFoundError("file not found", nil)
		}
		return nil, err
	}

	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}
	postAcceptance := PostAcceptanceQuestions(sections)

	var (
		result  *SaveResult
		changes []models.StatusChange
	)
	err = s.Store.InApplicationTx(ctx, file.ApplicationID, func(ctx context.Context, tx repository.Tx) error {
		result, changes = nil, nil

		cleared, err := tx.ClearFileReferences(ctx, id)
		if err != nil {
			return err
		}

		if status := tx.Application().Status; !caller.IsAdmin() && status.IsTerminal() {
			if !status.PostAcceptance() && len(cleared) > 0 {
				return fault.NewInvalidStateError("the application can no longer be edited", nil)
			}
			for _, qid := range cleared {
				if _, ok := postAcceptance[qid]; !ok {
					return fault.NewInvalidStateError("the application can no longer be edited", nil)
				}
			}
		}

		if err := tx.DeleteFile(ctx, id); err != nil {
			return err
		}

		actor := caller.UserID
		result, changes, err = s.recompute(ctx, tx, sections, &actor)
		return err
	})
	if err != nil {
		return nil, notFound(err, "file not found")
	}

	if err := s.Objects.Remove(ctx, file.StoragePath); err != nil {
		s.Log.Warn("stored object left behind after file delete",
			"file_id", id,
			"storage_path", file.StoragePath,
			"error", err,
		)
	}

	s.Log.Info("file deleted", "file_id", id, "application_id", file.ApplicationID, "actor_id", caller.UserID)
	s.publish(changes)
	return result, nil
}

func (s *fileServiceImpl) Upload(ctx context.Context, caller models.Identity, in UploadInput) (*UploadResult, error) {
	app, err := s.loadApplication(ctx, caller, in.ApplicationID)
	if err != nil {
		return nil, err
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(in.Filename), "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	switch {
	case name == "." || name == "/":
		return nil, fault.NewValidationError("file name is required", nil)
	case in.Size <= 0:
		return nil, fault.NewValidationError("file is empty", nil)
	case in.Size > s.MaxFileSize:
		return nil, fault.NewValidationError(fmt.Sprintf("file too large, the limit is %d MB", s.MaxFileSize>>20), nil)
	case !slices.Contains(s.AllowedFileTypes, ext):
		return nil, fault.NewValidationError(fmt.Sprintf("file type not allowed, allowed types: %s", strings.Join(s.AllowedFileTypes, ", ")), nil)
	}

	sections, err := s.sections(ctx)
	if err != nil {
		return nil, err
	}
	q, ok := findQuestion(sections, in.QuestionID)
	if !ok || !q.IsActive {
		return nil, fault.NewValidationError(fmt.Sprintf("unknown question_id %s", in.QuestionID), nil)
	}
	if !q.Type.AcceptsFile() {
		return nil, fault.NewValidationError(fmt.Sprintf("question %s does not take files", q.ID), nil)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	file := models.FileInfo{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		Filename:      name,
		Size:          in.Size,
		ContentType:   contentType,
		CreatedAt:     s.Now(),
	}
	file.StoragePath = fmt.Sprintf("%s/%s/%s%s", app.ID, q.ID, file.ID, ext)
	write := []pendingWrite{{question: q, value: models.FileRef{FileID: file.ID}}}

	// Reject before anything reaches the bucket; the check is repeated under the lock.
	if !caller.IsAdmin() {
		if err := checkApplicantWrite(*app, sections, write, SaveResponsesInput{}); err != nil {
			return nil, err
		}
	}

	if err := s.Objects.Put(ctx, file.StoragePath, in.Body, in.Size, contentType); err != nil {
		return nil, fault.NewInternalError("failed to store file", err)
	}

	var (
		result  *SaveResult
		changes []models.StatusChange
	)
	err = s.Store.InApplicationTx(ctx, app.ID, func(ctx context.Context, tx repository.Tx) error {
		result, changes = nil, nil

		if !caller.IsAdmin() {
			if err := checkApplicantWrite(tx.Application(), sections, write, SaveResponsesInput{}); err != nil {
				return err
			}
		}
		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}
		err := tx.UpsertResponse(ctx, models.Response{
			ApplicationID: app.ID,
			QuestionID:    q.ID,
			Value:         models.FileRef{FileID: file.ID},
			UpdatedAt:     file.CreatedAt,
		})
		if err != nil {
			return err
		}

		actor := caller.UserID
		result, changes, err = s.recompute(ctx, tx, sections, &actor)
		return err
	})
	if err != nil {
		if rmErr := s.Objects.Remove(ctx, file.StoragePath); rmErr != nil {
			s.Log.Warn("stored object left behind after failed upload",
				"storage_path", file.StoragePath,
				"error", rmErr,
			)
		}
		return nil, notFound(err, "application not found")
	}

	s.Log.Info("file uploaded",
		"file_id", file.ID,
		"application_id", app.ID,
		"question_id", q.ID,
		"size", file.Size,
	)
	s.publish(changes)
	return &UploadResult{File: file, SaveResult: *result}, nil
}

func findQuestion(sections []models.Section, id uuid.UUID) (models.Question, bool) {
	for _, q := range CatalogQuestions(sections) {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}
