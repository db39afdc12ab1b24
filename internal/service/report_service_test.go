package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"testops/internal/allure"
	"testops/internal/config"
	"testops/internal/logging"
	"testops/internal/report"
	"testops/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator writes the sorted names of the result files as the report.
type fakeGenerator struct {
	calls int
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, resultsDir, outDir string) error {
	g.calls++
	if g.err != nil {
		return g.err
	}
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return os.WriteFile(filepath.Join(outDir, report.IndexFile), []byte("<html>"+strings.Join(names, ",")+"</html>"), 0o644)
}

type reportFixture struct {
	runs    TestRunService
	reports ReportService
	store   *storage.LocalStore
	gen     *fakeGenerator
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	store := setupStore(t)
	dir := t.TempDir()
	results := storage.NewLocalStore(dir, "results")
	reports := storage.NewLocalStore(dir, "reports")
	gen := &fakeGenerator{}
	return &reportFixture{
		runs:    newRunService(t, store, results, nil),
		reports: NewReportService(store.Runs, results, reports, gen, config.ReportConfig{WorkDir: t.TempDir()}, logging.Discard(), nil),
		store:   reports,
		gen:     gen,
	}
}

func readReport(t *testing.T, r *Report) string {
	t.Helper()
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(data)
}

func TestReport_GeneratesOnceThenServesStored(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	up, err := f.runs.Upload(ctx, []allure.File{
		{Name: "a-result.json", Data: []byte(`{"status": "passed", "start": 1714557600000}`)},
		{Name: "environment.properties", Data: []byte("stand=dev\n")},
	})
	require.NoError(t, err)

	first, err := f.reports.GetOrGenerate(ctx, up.RunID)
	require.NoError(t, err)
	assert.True(t, first.Generated)
	assert.Equal(t, up.RunName, first.RunName)
	assert.Equal(t, "<html>a-result.json,environment.properties</html>", readReport(t, first))

	stored, err := f.store.Get(ctx, storage.Ref{Key: up.RunName + ".html"})
	require.NoError(t, err)
	stored.Close()

	second, err := f.reports.GetOrGenerate(ctx, up.RunID)
	require.NoError(t, err)
	assert.False(t, second.Generated)
	assert.Equal(t, "<html>a-result.json,environment.properties</html>", readReport(t, second))
	assert.Equal(t, 1, f.gen.calls)
}

func TestReport_Errors(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	_, err := f.reports.GetOrGenerate(ctx, 404)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "test run not found", nf.Error())

	empty, err := f.runs.Create(ctx, &CreateRunRequest{RunName: "manual"})
	require.NoError(t, err)
	_, err = f.reports.GetOrGenerate(ctx, empty.ID)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Zero(t, f.gen.calls)

	up, err := f.runs.Upload(ctx, []allure.File{{Name: "a-result.json", Data: []byte(`{"status": "passed"}`)}})
	require.NoError(t, err)
	f.gen.err = errors.New("allure generate failed")
	_, err = f.reports.GetOrGenerate(ctx, up.RunID)
	assert.EqualError(t, err, "allure generate failed")

	_, err = f.store.Get(ctx, storage.Ref{Key: up.RunName + ".html"})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	require.NoError(t, f.runs.Delete(ctx, up.RunID))
	_, err = f.reports.GetOrGenerate(ctx, up.RunID)
	assert.ErrorAs(t, err, &nf)
}
