package repository

import (
	"context"
	"fmt"

	"testops/internal/models"

	"gorm.io/gorm"
)

// AttachmentRepository 附件数据访问接口
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	FindByID(ctx context.Context, caseID, id uint) (*models.Attachment, error)
	FindByTestCase(ctx context.Context, caseID uint) ([]models.Attachment, error)
	Delete(ctx context.Context, id uint) error
}

type attachmentRepo struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建Repository实例
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) Create(ctx context.Context, attachment *models.Attachment) error {
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return fmt.Errorf("create attachment: %w", translate(err))
	}
	return nil
}

func (r *attachmentRepo) FindByID(ctx context.Context, caseID, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	err := r.db.WithContext(ctx).Where("test_case_id = ?", caseID).First(&attachment, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &attachment, nil
}

func (r *attachmentRepo) FindByTestCase(ctx context.Context, caseID uint) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := r.db.WithContext(ctx).Where("test_case_id = ?", caseID).Order("id ASC").Find(&attachments).Error
	return attachments, err
}

func (r *attachmentRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Attachment{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete attachment %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
