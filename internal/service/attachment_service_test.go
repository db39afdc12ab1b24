package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"testops/internal/logging"
	"testops/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	files := storage.NewLocalStore(t.TempDir(), "testcase-files-bucket")
	svc := NewAttachmentService(store, files, logging.Discard())

	tc, err := newCaseService(t, store).Create(ctx, decodePayload(t, `{"name": "With files"}`))
	require.NoError(t, err)

	a, err := svc.Upload(ctx, tc.ID, `C:\shots\login.png`, "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "login.png", a.OriginalFilename)
	assert.True(t, strings.HasPrefix(a.ObjectName, "test_cases/"))
	assert.True(t, strings.HasSuffix(a.ObjectName, "_login.png"))
	assert.Equal(t, int64(9), a.Size)

	list, err := svc.List(ctx, tc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, body, err := svc.Open(ctx, tc.ID, a.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", got.ContentType)

	var nerr *NotFoundError
	_, _, err = svc.Open(ctx, tc.ID+1, a.ID)
	assert.ErrorAs(t, err, &nerr, "attachment is scoped to its case")

	require.NoError(t, svc.Delete(ctx, tc.ID, a.ID))
	_, err = files.Get(ctx, storage.Ref{Key: a.ObjectName})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.ErrorAs(t, svc.Delete(ctx, tc.ID, a.ID), &nerr)
}

func TestAttachmentService_Rejects(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	svc := NewAttachmentService(store, storage.NewLocalStore(t.TempDir(), "b"), logging.Discard())

	var verr *ValidationError
	_, err := svc.Upload(ctx, 1, "", "text/plain", []byte("x"))
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Upload(ctx, 1, "a.txt", "text/plain", nil)
	assert.ErrorAs(t, err, &verr)

	var nerr *NotFoundError
	_, err = svc.Upload(ctx, 42, "a.txt", "text/plain", []byte("x"))
	assert.ErrorAs(t, err, &nerr)
	_, err = svc.List(ctx, 42)
	assert.ErrorAs(t, err, &nerr)
}
