package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"testops/internal/allure"
	"testops/internal/config"
	"testops/internal/metrics"
	"testops/internal/models"
	"testops/internal/pagination"
	"testops/internal/repository"
	"testops/internal/storage"
)

// Run event types published to subscribers.
const (
	RunTopic        = "runs"
	EventRunCreated = "run_created"
	EventRunDeleted = "run_deleted"
)

// RunNotifier receives run events. The websocket hub implements it.
type RunNotifier interface {
	Broadcast(topic, msgType string, payload interface{})
}

// TestRunService 测试执行记录服务接口
type TestRunService interface {
	Create(ctx context.Context, req *CreateRunRequest) (*RunView, error)
	Upload(ctx context.Context, files []allure.File) (*UploadResult, error)
	Get(ctx context.Context, id uint) (*RunView, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query RunListQuery) (*RunPage, error)
}

type testRunService struct {
	runs     repository.TestRunRepository
	results  storage.FileStore
	upload   config.UploadConfig
	listing  config.ListingConfig
	notifier RunNotifier
	log      *slog.Logger
	metrics  *metrics.Collector
}

// NewTestRunService creates a new run service. notifier may be nil.
func NewTestRunService(
	runs repository.TestRunRepository,
	results storage.FileStore,
	cfg *config.Config,
	notifier RunNotifier,
	log *slog.Logger,
	m *metrics.Collector,
) TestRunService {
	return &testRunService{
		runs:     runs,
		results:  results,
		upload:   cfg.Upload,
		listing:  cfg.Listing,
		notifier: notifier,
		log:      log,
		metrics:  m,
	}
}

// ===== Request/Response DTOs =====

type CreateRunRequest struct {
	RunName   string     `json:"run_name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status"`
	Stand     string     `json:"stand"`
}

type RunView struct {
	ID        uint       `json:"id"`
	RunName   string     `json:"run_name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status"`
	Stand     *string    `json:"stand"`
	FileLink  string     `json:"file_link,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newRunView(run *models.TestRun) RunView {
	v := RunView{
		ID:        run.ID,
		RunName:   run.RunName,
		StartDate: run.StartDate,
		EndDate:   run.EndDate,
		Status:    run.Status,
		FileLink:  run.FileLink,
		CreatedAt: run.CreatedAt,
	}
	if run.Stand != "" {
		stand := run.Stand
		v.Stand = &stand
	}
	return v
}

type UploadResult struct {
	RunID    uint     `json:"run_id"`
	RunName  string   `json:"run_name"`
	Status   string   `json:"status"`
	Stand    string   `json:"stand,omitempty"`
	FileLink string   `json:"file_link"`
	Uploaded []string `json:"uploaded"`
	Rejected []string `json:"rejected"`
}

// RunListQuery carries the raw listing parameters.
type RunListQuery struct {
	Cursor        string
	Direction     string
	Limit         int
	Stands        []string
	Statuses      []string
	StartDateFrom string
	StartDateTo   string
}

type RunFilters struct {
	Stands   []string `json:"stands"`
	Statuses []string `json:"statuses"`
}

type RunPage struct {
	Items      []RunView  `json:"items"`
	NextCursor *string    `json:"next_cursor"`
	PrevCursor *string    `json:"prev_cursor"`
	HasNext    bool       `json:"has_next"`
	HasPrev    bool       `json:"has_prev"`
	Filters    RunFilters `json:"filters"`
}

// ===== Create / Get / Delete =====

func (s *testRunService) Create(ctx context.Context, req *CreateRunRequest) (*RunView, error) {
	if req == nil || strings.TrimSpace(req.RunName) == "" {
		return nil, invalid("run_name", "is required")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.RunStatusPending
	}
	run := &models.TestRun{
		RunName:   strings.TrimSpace(req.RunName),
		StartDate: utcPtr(req.StartDate),
		EndDate:   utcPtr(req.EndDate),
		Status:    status,
		Stand:     strings.TrimSpace(req.Stand),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	view := newRunView(run)
	s.log.InfoContext(ctx, "test run created", "run_id", run.ID, "run_name", run.RunName)
	s.notify(EventRunCreated, view)
	return &view, nil
}

func (s *testRunService) Get(ctx context.Context, id uint) (*RunView, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "test run", id, "")
	}
	view := newRunView(run)
	return &view, nil
}

func (s *testRunService) Delete(ctx context.Context, id uint) error {
	if err := s.runs.SoftDelete(ctx, id); err != nil {
		return mapStoreError(err, "test run", id, "")
	}
	s.log.InfoContext(ctx, "test run deleted", "run_id", id)
	s.notify(EventRunDeleted, map[string]uint{"id": id})
	return nil
}

func (s *testRunService) notify(msgType string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Broadcast(RunTopic, msgType, payload)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ===== Upload =====

// runNameLayout formats the start of an uploaded run inside its name.
const runNameLayout = "20060102_150405"

func (s *testRunService) Upload(ctx context.Context, files []allure.File) (*UploadResult, error) {
	var valid []allure.File
	var total int64
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		f.Name = path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		valid = append(valid, f)
		total += int64(len(f.Data))
	}
	if len(valid) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	if total > s.upload.MaxTotalSize {
		return nil, invalid("files", "total upload size %d exceeds the limit of %d bytes", total, s.upload.MaxTotalSize)
	}
	if s.results == nil {
		return nil, errors.New("results store is not configured")
	}

	run := &models.TestRun{
		RunName: fmt.Sprintf("%s_%s", models.DefaultRunName, time.Now().UTC().Format(runNameLayout)),
		Status:  models.RunStatusPending,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "temporary test run created", "run_id", run.ID)

	summary := allure.Summarize(valid)
	if len(summary.InvalidFiles) > 0 {
		s.log.WarnContext(ctx, "result files without valid JSON", "run_id", run.ID, "files", summary.InvalidFiles)
	}

	run.Status = summary.Status
	run.StartDate = summary.Start
	run.EndDate = summary.Stop
	if summary.Start != nil {
		run.RunName = fmt.Sprintf("run_%d_%s", run.ID, summary.Start.Format(runNameLayout))
	} else {
		run.RunName = fmt.Sprintf("run_%d", run.ID)
	}

	result := &UploadResult{RunID: run.ID, RunName: run.RunName, Status: run.Status, Uploaded: []string{}, Rejected: []string{}}
	for _, f := range valid {
		if !s.allowed(f.Name) || len(f.Data) == 0 {
			s.log.WarnContext(ctx, "file rejected", "run_id", run.ID, "file", f.Name, "size", len(f.Data))
			result.Rejected = append(result.Rejected, f.Name)
			continue
		}
		if f.Name == allure.EnvironmentFile {
			if stand := allure.ExtractStand(f.Data); stand != "" {
				run.Stand = stand
			}
		}
		if _, err := s.results.Put(ctx, run.RunName+"/"+f.Name, f.Data, contentType(f.Name)); err != nil {
			s.log.ErrorContext(ctx, "file upload failed", "run_id", run.ID, "file", f.Name, "error", err)
			result.Rejected = append(result.Rejected, f.Name)
			continue
		}
		result.Uploaded = append(result.Uploaded, f.Name)
	}

	run.FileLink = s.results.Link(run.RunName)
	run.Files = make(models.JSONArray, 0, len(result.Uploaded))
	for _, name := range result.Uploaded {
		run.Files = append(run.Files, name)
	}
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, err
	}

	result.Stand = run.Stand
	result.FileLink = run.FileLink
	s.metrics.RunUploaded(run.Status)
	s.log.InfoContext(ctx, "test run uploaded",
		"run_id", run.ID, "run_name", run.RunName, "status", run.Status, "stand", run.Stand,
		"uploaded", len(result.Uploaded), "rejected", len(result.Rejected))
	s.notify(EventRunCreated, newRunView(run))
	return result, nil
}

func (s *testRunService) allowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	for _, a := range s.upload.AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ===== Listing =====

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"}

// parseDateBound parses a filter bound. A date-only value covers the whole
// day: from its first instant (lower bound) to its last (upper bound).
func parseDateBound(field, value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if day, err := time.Parse("2006-01-02", value); err == nil {
		if upper {
			day = day.Add(24*time.Hour - time.Microsecond)
		}
		return &day, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid(field, "invalid date %q", value)
}

func cleanValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *testRunService) List(ctx context.Context, query RunListQuery) (*RunPage, error) {
	dir, err := pagination.ParseDirection(query.Direction)
	if err != nil {
		return nil, invalid("direction", "%v", err)
	}
	if query.Limit < 0 {
		return nil, invalid("limit", "must be positive")
	}
	limit := pagination.Limit(query.Limit, s.listing.DefaultLimit, s.listing.MaxLimit)

	var cursor *pagination.Cursor
	if query.Cursor != "" {
		c, err := pagination.Decode(query.Cursor)
		if err != nil {
			return nil, invalid("cursor", "invalid cursor")
		}
		cursor = &c
	}

	filter := repository.RunFilter{Stands: cleanValues(query.Stands), Statuses: cleanValues(query.Statuses)}
	if filter.StartFrom, err = parseDateBound("start_date_from", query.StartDateFrom, false); err != nil {
		return nil, err
	}
	if filter.StartTo, err = parseDateBound("start_date_to", query.StartDateTo, true); err != nil {
		return nil, err
	}
	if filter.StartFrom != nil && filter.StartTo != nil && filter.StartTo.Before(*filter.StartFrom) {
		return nil, invalid("start_date_to", "must not be before start_date_from")
	}

	rows, err := s.runs.Seek(ctx, filter, cursor, dir, limit+1)
	if err != nil {
		return nil, err
	}
	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}
	if dir == pagination.Prev {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	page := &RunPage{Items: make([]RunView, 0, len(rows))}
	for i := range rows {
		page.Items = append(page.Items, newRunView(&rows[i]))
	}

	if len(rows) > 0 {
		newest := keyOf(&rows[0])
		oldest := keyOf(&rows[len(rows)-1])
		if dir == pagination.Next {
			page.HasNext = more
			if cursor != nil {
				if page.HasPrev, err = s.exists(ctx, filter, newest, pagination.Prev); err != nil {
					return nil, err
				}
			}
		} else {
			page.HasPrev = more
			if page.HasNext, err = s.exists(ctx, filter, oldest, pagination.Next); err != nil {
				return nil, err
			}
		}
		if page.HasNext {
			token := oldest.Encode()
			page.NextCursor = &token
		}
		if page.HasPrev {
			token := newest.Encode()
			page.PrevCursor = &token
		}
	}

	if page.Filters, err = s.filterValues(ctx); err != nil {
		return nil, err
	}
	return page, nil
}

func keyOf(run *models.TestRun) pagination.Cursor {
	return pagination.Cursor{CreatedAt: run.CreatedAt, ID: run.ID}
}

// exists checks for one row beyond key in dir.
func (s *testRunService) exists(ctx context.Context, filter repository.RunFilter, key pagination.Cursor, dir pagination.Direction) (bool, error) {
	rows, err := s.runs.Seek(ctx, filter, &key, dir, 1)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// filterValues lists selectable stands and statuses over all active runs,
// independent of the filters applied to the page.
func (s *testRunService) filterValues(ctx context.Context) (RunFilters, error) {
	stands, err := s.runs.DistinctValues(ctx, "stand")
	if err != nil {
		return RunFilters{}, err
	}
	statuses, err := s.runs.DistinctValues(ctx, "status")
	if err != nil {
		return RunFilters{}, err
	}
	return RunFilters{Stands: stands, Statuses: statuses}, nil
}
