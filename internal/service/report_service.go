package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"testops/internal/config"
	"testops/internal/metrics"
	"testops/internal/models"
	"testops/internal/report"
	"testops/internal/repository"
	"testops/internal/storage"

	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"
)

// ReportService serves the HTML report of a run, generating it on first request.
type ReportService interface {
	GetOrGenerate(ctx context.Context, runID uint) (*Report, error)
}

// Report is an opened report. The caller closes Body.
type Report struct {
	RunName   string
	Body      io.ReadCloser
	Generated bool
}

type reportService struct {
	runs      repository.TestRunRepository
	results   storage.FileStore
	reports   storage.FileStore
	generator report.Generator
	workDir   string
	log       *slog.Logger
	metrics   *metrics.Collector

	inflight singleflight.Group
}

// NewReportService creates a new report service.
func NewReportService(
	runs repository.TestRunRepository,
	results, reports storage.FileStore,
	generator report.Generator,
	cfg config.ReportConfig,
	log *slog.Logger,
	m *metrics.Collector,
) ReportService {
	return &reportService{
		runs:      runs,
		results:   results,
		reports:   reports,
		generator: generator,
		workDir:   cfg.WorkDir,
		log:       log,
		metrics:   m,
	}
}

func reportKey(run *models.TestRun) string {
	return run.RunName + ".html"
}

func (s *reportService) GetOrGenerate(ctx context.Context, runID uint) (*Report, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return nil, mapStoreError(err, "test run", runID, "")
	}
	key := reportKey(run)

	body, err := s.reports.Get(ctx, storage.Ref{Key: key})
	if err == nil {
		return &Report{RunName: run.RunName, Body: body}, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		return nil, err
	}

	// Concurrent requests for one run share a single generation.
	if _, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		return nil, s.generate(ctx, run)
	}); err != nil {
		return nil, err
	}

	body, err = s.reports.Get(ctx, storage.Ref{Key: key})
	if err != nil {
		return nil, fmt.Errorf("open generated report %q: %w", key, err)
	}
	return &Report{RunName: run.RunName, Body: body, Generated: true}, nil
}

// generate downloads the run's result files, renders them and stores the report.
func (s *reportService) generate(ctx context.Context, run *models.TestRun) error {
	if len(run.Files) == 0 {
		return &ConflictError{Message: fmt.Sprintf("test run %d has no result files", run.ID)}
	}

	resultsDir, err := os.MkdirTemp(s.workDir, "allure-results-*")
	if err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	defer os.RemoveAll(resultsDir)
	reportDir, err := os.MkdirTemp(s.workDir, "allure-report-*")
	if err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	defer os.RemoveAll(reportDir)

	for _, f := range run.Files {
		name := cast.ToString(f)
		if name == "" {
			continue
		}
		if err := s.download(ctx, run.RunName+"/"+name, filepath.Join(resultsDir, path.Base(name))); err != nil {
			return err
		}
	}

	if err := s.generator.Generate(ctx, resultsDir, reportDir); err != nil {
		s.metrics.ReportGenerated("error")
		s.log.ErrorContext(ctx, "report generation failed", "run_id", run.ID, "run_name", run.RunName, "error", err)
		return err
	}

	data, err := os.ReadFile(filepath.Join(reportDir, report.IndexFile))
	if err != nil {
		return fmt.Errorf("read generated report: %w", err)
	}
	if _, err := s.reports.Put(ctx, reportKey(run), data, "text/html"); err != nil {
		return err
	}
	s.metrics.ReportGenerated("ok")
	s.log.InfoContext(ctx, "report generated", "run_id", run.ID, "run_name", run.RunName, "files", len(run.Files), "size", len(data))
	return nil
}

func (s *reportService) download(ctx context.Context, key, dest string) error {
	body, err := s.results.Get(ctx, storage.Ref{Key: key})
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.log.WarnContext(ctx, "result file missing", "key", key)
		return nil
	}
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("download %q: %w", key, err)
	}
	return f.Close()
}
