package repository

import (
	"context"
	"fmt"

	"testops/internal/models"

	"gorm.io/gorm"
)

// TagRepository 标签数据访问接口
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	FindByID(ctx context.Context, id uint) (*models.Tag, error)
	FindByName(ctx context.Context, name string) (*models.Tag, error)
	FindAll(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, id uint) error
}

type tagRepo struct {
	db *gorm.DB
}

// NewTagRepository 创建Repository实例
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Create(ctx context.Context, tag *models.Tag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("create tag %q: %w", tag.Name, translate(err))
	}
	return nil
}

func (r *tagRepo) FindByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

func (r *tagRepo) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

func (r *tagRepo) FindAll(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

// Delete 物理删除标签，只移除关联，不影响用例
func (r *tagRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyDeletionPolicy(tx, "tags", id); err != nil {
			return err
		}
		result := tx.Delete(&models.Tag{}, id)
		if result.Error != nil {
			return fmt.Errorf("delete tag %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
