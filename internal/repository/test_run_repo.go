package repository

import (
	"context"
	"fmt"
	"time"

	"testops/internal/models"
	"testops/internal/pagination"

	"gorm.io/gorm"
)

// RunFilter restricts a run listing. Empty fields do not restrict.
type RunFilter struct {
	Stands    []string
	Statuses  []string
	StartFrom *time.Time // inclusive
	StartTo   *time.Time // inclusive
}

func (f RunFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.Stands) > 0 {
		db = db.Where("stand IN ?", f.Stands)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.StartFrom != nil {
		db = db.Where("start_date >= ?", *f.StartFrom)
	}
	if f.StartTo != nil {
		db = db.Where("start_date <= ?", *f.StartTo)
	}
	return db
}

// TestRunRepository 测试执行记录数据访问接口
type TestRunRepository interface {
	Create(ctx context.Context, run *models.TestRun) error
	Update(ctx context.Context, run *models.TestRun) error
	FindByID(ctx context.Context, id uint) (*models.TestRun, error)
	SoftDelete(ctx context.Context, id uint) error
	Seek(ctx context.Context, filter RunFilter, cursor *pagination.Cursor, dir pagination.Direction, limit int) ([]models.TestRun, error)
	DistinctValues(ctx context.Context, column string) ([]string, error)
}

type testRunRepo struct {
	db *gorm.DB
}

// NewTestRunRepository 创建Repository实例
func NewTestRunRepository(db *gorm.DB) TestRunRepository {
	return &testRunRepo{db: db}
}

func (r *testRunRepo) Create(ctx context.Context, run *models.TestRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create test run: %w", translate(err))
	}
	return nil
}

func (r *testRunRepo) Update(ctx context.Context, run *models.TestRun) error {
	result := r.db.WithContext(ctx).Model(run).
		Where("is_deleted = ?", false).
		Select("run_name", "start_date", "end_date", "status", "stand", "file_link", "files").
		Updates(run)
	if result.Error != nil {
		return fmt.Errorf("update test run %d: %w", run.ID, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testRunRepo) FindByID(ctx context.Context, id uint) (*models.TestRun, error) {
	var run models.TestRun
	if err := r.db.WithContext(ctx).Scopes(models.Active).First(&run, id).Error; err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

func (r *testRunRepo) SoftDelete(ctx context.Context, id uint) error {
	return MarkDeleted(ctx, r.db, &models.TestRun{}, id)
}

// Seek reads up to limit active rows strictly beyond cursor in dir. Next rows
// come back newest first, Prev rows oldest first. A nil cursor starts at the
// newest (Next) or oldest (Prev) row.
func (r *testRunRepo) Seek(ctx context.Context, filter RunFilter, cursor *pagination.Cursor, dir pagination.Direction, limit int) ([]models.TestRun, error) {
	db := r.db.WithContext(ctx).Scopes(models.Active, filter.scope)

	if dir == pagination.Prev {
		if cursor != nil {
			db = db.Where("(created_at > ? OR (created_at = ? AND id > ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		db = db.Order("created_at ASC").Order("id ASC")
	} else {
		if cursor != nil {
			db = db.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		db = db.Order("created_at DESC").Order("id DESC")
	}

	var runs []models.TestRun
	if err := db.Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("seek test runs: %w", err)
	}
	return runs, nil
}

// filterColumns are the columns DistinctValues may read.
var filterColumns = map[string]bool{"stand": true, "status": true}

// DistinctValues returns the sorted non-empty values of column over all active runs.
func (r *testRunRepo) DistinctValues(ctx context.Context, column string) ([]string, error) {
	if !filterColumns[column] {
		return nil, fmt.Errorf("column %q is not a run filter", column)
	}
	values := []string{}
	err := r.db.WithContext(ctx).Model(&models.TestRun{}).
		Scopes(models.Active).
		Where(column+" IS NOT NULL AND "+column+" <> ''").
		Distinct(column).
		Order(column+" ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	return values, nil
}
