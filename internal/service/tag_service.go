package service

import (
	"context"
	"log/slog"

	"testops/internal/models"
	"testops/internal/repository"
)

// TagService 标签服务接口
type TagService interface {
	List(ctx context.Context) ([]models.Tag, error)
	Delete(ctx context.Context, id uint) error
}

type tagService struct {
	tags repository.TagRepository
	log  *slog.Logger
}

// NewTagService creates a new tag service
func NewTagService(tags repository.TagRepository, log *slog.Logger) TagService {
	return &tagService{tags: tags, log: log}
}

func (s *tagService) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

// Delete removes the tag and its links; tagged cases are untouched.
func (s *tagService) Delete(ctx context.Context, id uint) error {
	if err := s.tags.Delete(ctx, id); err != nil {
		return mapStoreError(err, "tag", id, "")
	}
	s.log.InfoContext(ctx, "tag deleted", "tag_id", id)
	return nil
}
