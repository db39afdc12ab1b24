package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"testops/internal/config"
	"testops/internal/models"
	"testops/internal/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestTestCaseName_UniqueAmongActiveRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	first := &models.TestCase{Name: "Login"}
	require.NoError(t, store.TestCases.Create(ctx, first))

	err := store.TestCases.Create(ctx, &models.TestCase{Name: "Login"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, store.TestCases.SoftDelete(ctx, first.ID))
	assert.NoError(t, store.TestCases.Create(ctx, &models.TestCase{Name: "Login"}))
}

func TestMarkDeleted_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	assert.ErrorIs(t, store.TestCases.SoftDelete(ctx, 999), ErrNotFound)

	run := &models.TestRun{RunName: "nightly"}
	require.NoError(t, store.Runs.Create(ctx, run))
	require.NoError(t, store.Runs.SoftDelete(ctx, run.ID))
	assert.ErrorIs(t, store.Runs.SoftDelete(ctx, run.ID), ErrNotFound)

	_, err := store.Runs.FindByID(ctx, run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByID_IncludeDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	tc := &models.TestCase{Name: "Checkout"}
	require.NoError(t, store.TestCases.Create(ctx, tc))
	require.NoError(t, store.TestCases.SoftDelete(ctx, tc.ID))

	_, err := store.TestCases.FindByID(ctx, tc.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.TestCases.FindByID(ctx, tc.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.NotNil(t, got.DeletedAt)
}

func TestSuiteSoftDelete_AppliesPolicy(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewStore(db)

	parent := &models.TestSuite{Name: "API"}
	require.NoError(t, store.Suites.Create(ctx, parent))
	child := &models.TestSuite{Name: "Auth", ParentID: &parent.ID}
	require.NoError(t, store.Suites.Create(ctx, child))

	tc := &models.TestCase{Name: "Login"}
	require.NoError(t, store.TestCases.Create(ctx, tc))
	require.NoError(t, store.TestCases.ReplaceSuiteLinks(ctx, tc.ID, []models.TestCaseSuite{{SuiteID: parent.ID, Position: 1}}))

	require.NoError(t, store.Suites.SoftDelete(ctx, parent.ID))

	got, err := store.Suites.FindByID(ctx, child.ID, false)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	links, err := store.TestCases.SuiteLinks(ctx, tc.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = store.TestCases.FindByID(ctx, tc.ID, false)
	assert.NoError(t, err)
}

func TestTagDelete_RemovesLinksOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	tag := &models.Tag{Name: "smoke"}
	require.NoError(t, store.Tags.Create(ctx, tag))
	tc := &models.TestCase{Name: "Login"}
	require.NoError(t, store.TestCases.Create(ctx, tc))
	require.NoError(t, store.TestCases.ReplaceTags(ctx, tc.ID, []uint{tag.ID}))

	require.NoError(t, store.Tags.Delete(ctx, tag.ID))
	assert.ErrorIs(t, store.Tags.Delete(ctx, tag.ID), ErrNotFound)

	got, err := store.TestCases.FindByID(ctx, tc.ID, false)
	require.NoError(t, err)
	assert.Empty(t, got.TagLinks)
}

func TestPurge_CascadesChildren(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewStore(db)

	tc := &models.TestCase{Name: "Login"}
	require.NoError(t, store.TestCases.Create(ctx, tc))
	require.NoError(t, store.TestCases.ReplaceSteps(ctx, tc.ID, []models.TestCaseStep{
		{Position: 1, Action: "Open"},
		{Position: 2, Action: "Submit"},
	}))
	require.NoError(t, store.Attachments.Create(ctx, &models.Attachment{
		TestCaseID: tc.ID, OriginalFilename: "a.png", ObjectName: "test_cases/1/a.png", Bucket: "b",
	}))

	require.NoError(t, store.TestCases.Purge(ctx, tc.ID))

	var steps, attachments int64
	require.NoError(t, db.Model(&models.TestCaseStep{}).Count(&steps).Error)
	require.NoError(t, db.Model(&models.Attachment{}).Count(&attachments).Error)
	assert.Zero(t, steps)
	assert.Zero(t, attachments)
	assert.ErrorIs(t, store.TestCases.Purge(ctx, tc.ID), ErrNotFound)
}

func TestStepPositionUnique(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	tc := &models.TestCase{Name: "Login"}
	require.NoError(t, store.TestCases.Create(ctx, tc))
	err := store.TestCases.ReplaceSteps(ctx, tc.ID, []models.TestCaseStep{
		{Position: 1, Action: "Open"},
		{Position: 1, Action: "Submit"},
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	err := store.Transaction(ctx, func(tx *Store) error {
		if err := tx.Tags.Create(ctx, &models.Tag{Name: "smoke"}); err != nil {
			return err
		}
		return tx.Tags.Create(ctx, &models.Tag{Name: "smoke"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Tags.FindByName(ctx, "smoke")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsAncestor(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	a := &models.TestSuite{Name: "a"}
	require.NoError(t, store.Suites.Create(ctx, a))
	b := &models.TestSuite{Name: "b", ParentID: &a.ID}
	require.NoError(t, store.Suites.Create(ctx, b))
	c := &models.TestSuite{Name: "c", ParentID: &b.ID}
	require.NoError(t, store.Suites.Create(ctx, c))

	ok, err := store.Suites.IsAncestor(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Suites.IsAncestor(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	tree, err := store.Suites.GetTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "c", tree[0].Children[0].Children[0].Name)
}

func TestSeek_KeysetOrder(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewStore(db)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &models.TestRun{RunName: "r", Stand: "dev", Status: models.RunStatusPassed, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.Runs.Create(ctx, run))
	}
	// same created_at as the newest row; id breaks the tie
	require.NoError(t, store.Runs.Create(ctx, &models.TestRun{RunName: "r", Stand: "prod", CreatedAt: base.Add(4 * time.Minute)}))

	first, err := store.Runs.Seek(ctx, RunFilter{}, nil, pagination.Next, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, uint(6), first[0].ID)
	assert.Equal(t, uint(5), first[1].ID)

	last := first[2]
	rest, err := store.Runs.Seek(ctx, RunFilter{}, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, pagination.Next, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, uint(3), rest[0].ID)

	back, err := store.Runs.Seek(ctx, RunFilter{}, &pagination.Cursor{CreatedAt: rest[0].CreatedAt, ID: rest[0].ID}, pagination.Prev, 10)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, uint(4), back[0].ID)

	prod, err := store.Runs.Seek(ctx, RunFilter{Stands: []string{"prod"}}, nil, pagination.Next, 10)
	require.NoError(t, err)
	assert.Len(t, prod, 1)

	stands, err := store.Runs.DistinctValues(ctx, "stand")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, stands)

	_, err = store.Runs.DistinctValues(ctx, "run_name; drop table test_runs")
	assert.Error(t, err)
}

func TestDeletionPolicyTable(t *testing.T) {
	rules := DeletionPolicy("test_suites")
	require.Len(t, rules, 2)
	assert.Equal(t, Nullify, rules[0].Action)
	assert.Equal(t, "parent_id", rules[0].Column)
	assert.Equal(t, Cascade, rules[1].Action)
	assert.Empty(t, DeletionPolicy("test_runs"))
}
