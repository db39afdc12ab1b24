package repository

import (
	"context"
	"errors"
	"fmt"

	"testops/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestSuiteRepository 测试套件数据访问接口
type TestSuiteRepository interface {
	Create(ctx context.Context, suite *models.TestSuite) error
	Update(ctx context.Context, suite *models.TestSuite) error
	FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.TestSuite, error)
	FindActiveByName(ctx context.Context, name string) (*models.TestSuite, error)
	FindAll(ctx context.Context) ([]models.TestSuite, error)
	GetTree(ctx context.Context) ([]models.TestSuite, error)
	IsAncestor(ctx context.Context, ancestorID, id uint) (bool, error)
	MaxPosition(ctx context.Context, suiteID uint) (int, error)
	SoftDelete(ctx context.Context, id uint) error
}

type testSuiteRepo struct {
	db *gorm.DB
}

// NewTestSuiteRepository 创建Repository实例
func NewTestSuiteRepository(db *gorm.DB) TestSuiteRepository {
	return &testSuiteRepo{db: db}
}

func (r *testSuiteRepo) Create(ctx context.Context, suite *models.TestSuite) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(suite).Error; err != nil {
		return fmt.Errorf("create suite %q: %w", suite.Name, translate(err))
	}
	return nil
}

func (r *testSuiteRepo) Update(ctx context.Context, suite *models.TestSuite) error {
	result := r.db.WithContext(ctx).Model(suite).
		Omit(clause.Associations).
		Where("is_deleted = ?", false).
		Select("name", "description", "parent_id", "updated_at").
		Updates(suite)
	if result.Error != nil {
		return fmt.Errorf("update suite %d: %w", suite.ID, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testSuiteRepo) FindByID(ctx context.Context, id uint, includeDeleted bool) (*models.TestSuite, error) {
	var suite models.TestSuite
	err := r.db.WithContext(ctx).Scopes(models.ActiveUnless(includeDeleted)).First(&suite, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &suite, nil
}

func (r *testSuiteRepo) FindActiveByName(ctx context.Context, name string) (*models.TestSuite, error) {
	var suite models.TestSuite
	err := r.db.WithContext(ctx).Scopes(models.Active).Where("name = ?", name).First(&suite).Error
	if err != nil {
		return nil, translate(err)
	}
	return &suite, nil
}

func (r *testSuiteRepo) FindAll(ctx context.Context) ([]models.TestSuite, error) {
	var suites []models.TestSuite
	err := r.db.WithContext(ctx).Scopes(models.Active).Order("id ASC").Find(&suites).Error
	return suites, err
}

// GetTree 构建活跃套件树，套件按 id 存放，父子关系只通过 parent_id 连接
func (r *testSuiteRepo) GetTree(ctx context.Context) ([]models.TestSuite, error) {
	suites, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	// 构建 map 用于快速查找
	suiteMap := make(map[uint]*models.TestSuite, len(suites))
	childMap := make(map[uint][]uint) // parentID -> []childID
	for i := range suites {
		suiteMap[suites[i].ID] = &suites[i]
	}
	for i := range suites {
		if p := suites[i].ParentID; p != nil {
			if _, ok := suiteMap[*p]; ok {
				childMap[*p] = append(childMap[*p], suites[i].ID)
			}
		}
	}

	// 递归构建节点及其子节点
	visited := make(map[uint]bool, len(suites))
	var buildNode func(id uint) models.TestSuite
	buildNode = func(id uint) models.TestSuite {
		visited[id] = true
		suite := *suiteMap[id]
		suite.Children = []models.TestSuite{}
		for _, childID := range childMap[id] {
			if !visited[childID] {
				suite.Children = append(suite.Children, buildNode(childID))
			}
		}
		return suite
	}

	// 构建根节点：没有父节点，或父节点不在活跃集合中
	roots := []models.TestSuite{}
	for i := range suites {
		p := suites[i].ParentID
		if p == nil || suiteMap[*p] == nil {
			roots = append(roots, buildNode(suites[i].ID))
		}
	}
	return roots, nil
}

// IsAncestor reports whether ancestorID is id itself or lies on id's parent chain.
func (r *testSuiteRepo) IsAncestor(ctx context.Context, ancestorID, id uint) (bool, error) {
	seen := make(map[uint]bool)
	current := &id
	for current != nil {
		if *current == ancestorID {
			return true, nil
		}
		if seen[*current] {
			return false, nil
		}
		seen[*current] = true

		var suite models.TestSuite
		err := r.db.WithContext(ctx).Select("id", "parent_id").First(&suite, *current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("walk suite parents: %w", err)
		}
		current = suite.ParentID
	}
	return false, nil
}

func (r *testSuiteRepo) MaxPosition(ctx context.Context, suiteID uint) (int, error) {
	var maxPos int64
	err := r.db.WithContext(ctx).Model(&models.TestCaseSuite{}).
		Where("suite_id = ?", suiteID).
		Select("COALESCE(MAX(position), 0)").
		Row().Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("max position in suite %d: %w", suiteID, err)
	}
	return int(maxPos), nil
}

// SoftDelete 软删除套件：子套件挂到根上，用例关联被移除
func (r *testSuiteRepo) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := MarkDeleted(ctx, tx, &models.TestSuite{}, id); err != nil {
			return err
		}
		return applyDeletionPolicy(tx, "test_suites", id)
	})
}
