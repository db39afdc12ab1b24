package repository

import (
	"context"
	"fmt"

	"testops/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestCaseRepository 测试案例数据访问接口
type TestCaseRepository interface {
	Create(ctx context.Context, testCase *models.TestCase) error
	Update(ctx context.Context, testCase *models.TestCase) error
	FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.TestCase, error)
	FindAll(ctx context.Context, includeDeleted bool, limit, offset int) ([]models.TestCase, int64, error)
	ReplaceSteps(ctx context.Context, caseID uint, steps []models.TestCaseStep) error
	ReplaceTags(ctx context.Context, caseID uint, tagIDs []uint) error
	ReplaceSuiteLinks(ctx context.Context, caseID uint, links []models.TestCaseSuite) error
	SuiteLinks(ctx context.Context, caseID uint) ([]models.TestCaseSuite, error)
	SoftDelete(ctx context.Context, id uint) error
	Purge(ctx context.Context, id uint) error
}

// testCaseRepo 实现
type testCaseRepo struct {
	db *gorm.DB
}

// NewTestCaseRepository 创建Repository实例
func NewTestCaseRepository(db *gorm.DB) TestCaseRepository {
	return &testCaseRepo{db: db}
}

func (r *testCaseRepo) Create(ctx context.Context, testCase *models.TestCase) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(testCase).Error; err != nil {
		return fmt.Errorf("create test case: %w", translate(err))
	}
	return nil
}

func (r *testCaseRepo) Update(ctx context.Context, testCase *models.TestCase) error {
	result := r.db.WithContext(ctx).Model(testCase).
		Omit(clause.Associations).
		Where("is_deleted = ?", false).
		Select("name", "preconditions", "description", "expected_result", "updated_at").
		Updates(testCase)
	if result.Error != nil {
		return fmt.Errorf("update test case %d: %w", testCase.ID, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// hydrate preloads everything a case view needs.
func hydrate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("TagLinks.Tag").
		Preload("SuiteLinks", func(db *gorm.DB) *gorm.DB { return db.Order("suite_id ASC") }).
		Preload("SuiteLinks.Suite")
}

func (r *testCaseRepo) FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.TestCase, error) {
	var testCase models.TestCase
	err := r.db.WithContext(ctx).
		Scopes(models.ActiveUnless(includeDeleted), hydrate).
		First(&testCase, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &testCase, nil
}

func (r *testCaseRepo) FindAll(ctx context.Context, includeDeleted bool, limit, offset int) ([]models.TestCase, int64, error) {
	var testCases []models.TestCase
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.TestCase{}).Scopes(models.ActiveUnless(includeDeleted)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count test cases: %w", err)
	}

	err := db.Scopes(models.ActiveUnless(includeDeleted), hydrate).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&testCases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list test cases: %w", err)
	}
	return testCases, total, nil
}

func (r *testCaseRepo) ReplaceSteps(ctx context.Context, caseID uint, steps []models.TestCaseStep) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("test_case_id = ?", caseID).Delete(&models.TestCaseStep{}).Error; err != nil {
		return fmt.Errorf("delete steps of case %d: %w", caseID, err)
	}
	if len(steps) == 0 {
		return nil
	}
	for i := range steps {
		steps[i].ID = 0
		steps[i].TestCaseID = caseID
	}
	if err := db.Create(&steps).Error; err != nil {
		return fmt.Errorf("create steps of case %d: %w", caseID, translate(err))
	}
	return nil
}

func (r *testCaseRepo) ReplaceTags(ctx context.Context, caseID uint, tagIDs []uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("test_case_id = ?", caseID).Delete(&models.TestCaseTag{}).Error; err != nil {
		return fmt.Errorf("delete tag links of case %d: %w", caseID, err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]models.TestCaseTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.TestCaseTag{TestCaseID: caseID, TagID: id})
	}
	if err := db.Omit(clause.Associations).Create(&links).Error; err != nil {
		return fmt.Errorf("create tag links of case %d: %w", caseID, translate(err))
	}
	return nil
}

func (r *testCaseRepo) ReplaceSuiteLinks(ctx context.Context, caseID uint, links []models.TestCaseSuite) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("test_case_id = ?", caseID).Delete(&models.TestCaseSuite{}).Error; err != nil {
		return fmt.Errorf("delete suite links of case %d: %w", caseID, err)
	}
	if len(links) == 0 {
		return nil
	}
	for i := range links {
		links[i].TestCaseID = caseID
	}
	if err := db.Omit(clause.Associations).Create(&links).Error; err != nil {
		return fmt.Errorf("create suite links of case %d: %w", caseID, translate(err))
	}
	return nil
}

func (r *testCaseRepo) SuiteLinks(ctx context.Context, caseID uint) ([]models.TestCaseSuite, error) {
	var links []models.TestCaseSuite
	err := r.db.WithContext(ctx).Where("test_case_id = ?", caseID).Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("load suite links of case %d: %w", caseID, err)
	}
	return links, nil
}

func (r *testCaseRepo) SoftDelete(ctx context.Context, id uint) error {
	return MarkDeleted(ctx, r.db, &models.TestCase{}, id)
}

func (r *testCaseRepo) Purge(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyDeletionPolicy(tx, "test_cases", id); err != nil {
			return err
		}
		result := tx.Delete(&models.TestCase{}, id)
		if result.Error != nil {
			return fmt.Errorf("purge test case %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
