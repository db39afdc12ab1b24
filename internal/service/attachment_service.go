package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"testops/internal/models"
	"testops/internal/repository"
	"testops/internal/storage"

	"github.com/google/uuid"
)

// AttachmentService 用例附件服务接口
type AttachmentService interface {
	Upload(ctx context.Context, caseID uint, filename, contentType string, data []byte) (*models.Attachment, error)
	List(ctx context.Context, caseID uint) ([]models.Attachment, error)
	Open(ctx context.Context, caseID, id uint) (*models.Attachment, io.ReadCloser, error)
	Delete(ctx context.Context, caseID, id uint) error
}

type attachmentService struct {
	store *repository.Store
	files storage.FileStore
	log   *slog.Logger
}

// NewAttachmentService creates a new attachment service
func NewAttachmentService(store *repository.Store, files storage.FileStore, log *slog.Logger) AttachmentService {
	return &attachmentService{store: store, files: files, log: log}
}

func (s *attachmentService) requireCase(ctx context.Context, caseID uint) error {
	if _, err := s.store.TestCases.FindByID(ctx, caseID, false); err != nil {
		return mapStoreError(err, "test case", caseID, "")
	}
	return nil
}

// Upload stores the file under test_cases/{id}/{uuid}_{name} and records it.
// When the record cannot be written the object is removed again.
func (s *attachmentService) Upload(ctx context.Context, caseID uint, filename, contentType string, data []byte) (*models.Attachment, error) {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return nil, invalid("file", "a file name is required")
	}
	if len(data) == 0 {
		return nil, invalid("file", "file %q is empty", filename)
	}
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("test_cases/%d/%s_%s", caseID, uuid.NewString(), filename)
	ref, err := s.files.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	attachment := &models.Attachment{
		TestCaseID:       caseID,
		OriginalFilename: filename,
		ObjectName:       ref.Key,
		Bucket:           ref.Bucket,
		ContentType:      contentType,
		Size:             ref.Size,
	}
	if err := s.store.Attachments.Create(ctx, attachment); err != nil {
		if derr := s.files.Delete(ctx, ref); derr != nil {
			s.log.WarnContext(ctx, "failed to remove orphaned attachment object", "object_name", ref.Key, "error", derr)
		}
		return nil, mapStoreError(err, "attachment", 0, "attachment object name already exists")
	}
	s.log.InfoContext(ctx, "attachment uploaded", "test_case_id", caseID, "attachment_id", attachment.ID, "size", attachment.Size)
	return attachment, nil
}

func (s *attachmentService) List(ctx context.Context, caseID uint) ([]models.Attachment, error) {
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.store.Attachments.FindByTestCase(ctx, caseID)
}

func (s *attachmentService) Open(ctx context.Context, caseID, id uint) (*models.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.Attachments.FindByID(ctx, caseID, id)
	if err != nil {
		return nil, nil, mapStoreError(err, "attachment", id, "")
	}
	body, err := s.files.Get(ctx, refOf(attachment))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, &NotFoundError{Resource: "attachment file", ID: id}
	}
	if err != nil {
		return nil, nil, err
	}
	return attachment, body, nil
}

// Delete removes the object first, then the record.
func (s *attachmentService) Delete(ctx context.Context, caseID, id uint) error {
	attachment, err := s.store.Attachments.FindByID(ctx, caseID, id)
	if err != nil {
		return mapStoreError(err, "attachment", id, "")
	}
	if err := s.files.Delete(ctx, refOf(attachment)); err != nil {
		return fmt.Errorf("delete attachment object: %w", err)
	}
	if err := s.store.Attachments.Delete(ctx, id); err != nil {
		return mapStoreError(err, "attachment", id, "")
	}
	s.log.InfoContext(ctx, "attachment deleted", "test_case_id", caseID, "attachment_id", id)
	return nil
}

func refOf(a *models.Attachment) storage.Ref {
	return storage.Ref{Bucket: a.Bucket, Key: a.ObjectName, Size: a.Size}
}
