package service

import (
	"context"
	"testing"

	"testops/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteService_Hierarchy(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	svc := NewTestSuiteService(store, logging.Discard())

	root, err := svc.Create(ctx, &SuiteRequest{Name: "Root"})
	require.NoError(t, err)
	child, err := svc.Create(ctx, &SuiteRequest{Name: "Child", ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, &SuiteRequest{Name: "Leaf", ParentID: &child.ID})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Leaf", tree[0].Children[0].Children[0].Name)

	var verr *ValidationError
	_, err = svc.Update(ctx, root.ID, &SuiteRequest{Name: "Root", ParentID: &leaf.ID})
	assert.ErrorAs(t, err, &verr, "moving a suite under its descendant")
	_, err = svc.Update(ctx, root.ID, &SuiteRequest{Name: "Root", ParentID: &root.ID})
	assert.ErrorAs(t, err, &verr, "moving a suite under itself")

	missing := uint(999)
	_, err = svc.Create(ctx, &SuiteRequest{Name: "Orphan", ParentID: &missing})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Create(ctx, &SuiteRequest{Name: " "})
	assert.ErrorAs(t, err, &verr)

	var cerr *ConflictError
	_, err = svc.Create(ctx, &SuiteRequest{Name: "Child"})
	assert.ErrorAs(t, err, &cerr)

	// deleting the middle suite detaches its children
	require.NoError(t, svc.Delete(ctx, child.ID))
	got, err := svc.Get(ctx, leaf.ID, false)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	var nerr *NotFoundError
	_, err = svc.Get(ctx, child.ID, false)
	assert.ErrorAs(t, err, &nerr)
	deleted, err := svc.Get(ctx, child.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.ErrorAs(t, svc.Delete(ctx, child.ID), &nerr)

	renamed, err := svc.Create(ctx, &SuiteRequest{Name: "Child"})
	require.NoError(t, err)
	assert.NotEqual(t, child.ID, renamed.ID)
}

func TestSuiteDelete_RemovesCaseLinks(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	cases := newCaseService(t, store)
	suites := NewTestSuiteService(store, logging.Discard())

	v, err := cases.Create(ctx, decodePayload(t, `{"name": "Linked", "suite_links": [{"suite_name": "S"}]}`))
	require.NoError(t, err)
	require.Len(t, v.Suites, 1)

	require.NoError(t, suites.Delete(ctx, v.Suites[0].ID))

	got, err := cases.Get(ctx, v.ID, false)
	require.NoError(t, err)
	assert.Empty(t, got.Suites)
}

func TestTagService_DeleteKeepsCases(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	cases := newCaseService(t, store)
	tags := NewTagService(store.Tags, logging.Discard())

	v, err := cases.Create(ctx, decodePayload(t, `{"name": "Tagged", "tags": ["a", "b"]}`))
	require.NoError(t, err)

	list, err := tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	require.NoError(t, tags.Delete(ctx, list[0].ID))
	var nerr *NotFoundError
	assert.ErrorAs(t, tags.Delete(ctx, list[0].ID), &nerr)

	got, err := cases.Get(ctx, v.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "b", got.Tags[0].Name)
}
