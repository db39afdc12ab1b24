package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"testops/internal/models"
	"testops/internal/repository"
)

// TestSuiteService 测试套件服务接口
type TestSuiteService interface {
	Create(ctx context.Context, req *SuiteRequest) (*models.TestSuite, error)
	Update(ctx context.Context, id uint, req *SuiteRequest) (*models.TestSuite, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint, includeDeleted bool) (*models.TestSuite, error)
	Tree(ctx context.Context) ([]models.TestSuite, error)
}

type testSuiteService struct {
	store *repository.Store
	log   *slog.Logger
}

// NewTestSuiteService creates a new suite service
func NewTestSuiteService(store *repository.Store, log *slog.Logger) TestSuiteService {
	return &testSuiteService{store: store, log: log}
}

// SuiteRequest is the body for creating and updating a suite. A nil ParentID
// places the suite at the root.
type SuiteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

func (s *testSuiteService) Create(ctx context.Context, req *SuiteRequest) (*models.TestSuite, error) {
	name, err := req.validate()
	if err != nil {
		return nil, err
	}

	suite := &models.TestSuite{Name: name, Description: req.Description, ParentID: req.ParentID}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := checkParent(ctx, tx, 0, req.ParentID); err != nil {
			return err
		}
		return mapStoreError(tx.Suites.Create(ctx, suite), "suite", 0, fmt.Sprintf("suite with name %q already exists", name))
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "suite created", "suite_id", suite.ID)
	return suite, nil
}

func (s *testSuiteService) Update(ctx context.Context, id uint, req *SuiteRequest) (*models.TestSuite, error) {
	name, err := req.validate()
	if err != nil {
		return nil, err
	}

	var suite *models.TestSuite
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Suites.FindByID(ctx, id, false)
		if err != nil {
			return mapStoreError(err, "suite", id, "")
		}
		if err := checkParent(ctx, tx, id, req.ParentID); err != nil {
			return err
		}
		current.Name = name
		current.Description = req.Description
		current.ParentID = req.ParentID
		if err := tx.Suites.Update(ctx, current); err != nil {
			return mapStoreError(err, "suite", id, fmt.Sprintf("suite with name %q already exists", name))
		}
		suite = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "suite updated", "suite_id", id)
	return suite, nil
}

// checkParent requires an active parent that is not id or one of its descendants.
func checkParent(ctx context.Context, tx *repository.Store, id uint, parentID *uint) error {
	if parentID == nil {
		return nil
	}
	if _, err := tx.Suites.FindByID(ctx, *parentID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("parent_id", "suite %d does not exist", *parentID)
		}
		return err
	}
	if id == 0 {
		return nil
	}
	cycle, err := tx.Suites.IsAncestor(ctx, id, *parentID)
	if err != nil {
		return err
	}
	if cycle {
		return invalid("parent_id", "suite %d cannot be moved under itself or its descendant %d", id, *parentID)
	}
	return nil
}

func (r *SuiteRequest) validate() (string, error) {
	if r == nil {
		return "", invalid("", "request body is required")
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	return name, nil
}

func (s *testSuiteService) Delete(ctx context.Context, id uint) error {
	if err := s.store.Suites.SoftDelete(ctx, id); err != nil {
		return mapStoreError(err, "suite", id, "")
	}
	s.log.InfoContext(ctx, "suite deleted", "suite_id", id)
	return nil
}

func (s *testSuiteService) Get(ctx context.Context, id uint, includeDeleted bool) (*models.TestSuite, error) {
	suite, err := s.store.Suites.FindByID(ctx, id, includeDeleted)
	if err != nil {
		return nil, mapStoreError(err, "suite", id, "")
	}
	return suite, nil
}

func (s *testSuiteService) Tree(ctx context.Context) ([]models.TestSuite, error) {
	return s.store.Suites.GetTree(ctx)
}
