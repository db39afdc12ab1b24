package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"testops/internal/config"
	"testops/internal/metrics"
	"testops/internal/models"
	"testops/internal/pagination"
	"testops/internal/repository"
	"testops/internal/storage"
)

// TestCaseService 测试用例服务接口
type TestCaseService interface {
	Create(ctx context.Context, payload *TestCasePayload) (*TestCaseView, error)
	Update(ctx context.Context, id uint, payload *TestCasePayload) (*TestCaseView, error)
	Get(ctx context.Context, id uint, includeDeleted bool) (*TestCaseView, error)
	List(ctx context.Context, query ListTestCasesQuery) (*TestCaseList, error)
	Delete(ctx context.Context, id uint) error
	Purge(ctx context.Context, id uint) error
}

type testCaseService struct {
	store   *repository.Store
	files   storage.FileStore
	listing config.ListingConfig
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewTestCaseService creates a new test case service. files is the attachment
// store and may be nil when attachments are not configured.
func NewTestCaseService(
	store *repository.Store,
	files storage.FileStore,
	listing config.ListingConfig,
	log *slog.Logger,
	m *metrics.Collector,
) TestCaseService {
	return &testCaseService{
		store:   store,
		files:   files,
		listing: listing,
		log:     log,
		metrics: m,
	}
}

// ===== Request/Response DTOs =====

// TestCasePayload is the body of a create or full-replace update.
type TestCasePayload struct {
	Name           string      `json:"name"`
	Preconditions  string      `json:"preconditions"`
	Description    string      `json:"description"`
	ExpectedResult string      `json:"expected_result"`
	Steps          []StepInput `json:"steps"`
	Tags           []TagRef    `json:"tags"`
	SuiteLinks     []SuiteRef  `json:"suite_links"`
}

// StepInput is one submitted step. Position is optional.
type StepInput struct {
	Position    *int          `json:"position,omitempty"`
	Action      string        `json:"action"`
	Expected    string        `json:"expected"`
	Attachments []interface{} `json:"attachments"`
}

type StepView struct {
	ID          uint          `json:"id"`
	Position    int           `json:"position"`
	Action      string        `json:"action"`
	Expected    string        `json:"expected"`
	Attachments []interface{} `json:"attachments"`
}

type TagView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type SuiteLinkView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// TestCaseView is a hydrated test case.
type TestCaseView struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Preconditions  string          `json:"preconditions"`
	Description    string          `json:"description"`
	ExpectedResult string          `json:"expected_result"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	IsDeleted      bool            `json:"is_deleted"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	Steps          []StepView      `json:"steps"`
	Tags           []TagView       `json:"tags"`
	Suites         []SuiteLinkView `json:"suites"`
	Warnings       []Warning       `json:"warnings,omitempty"`
}

type ListTestCasesQuery struct {
	IncludeDeleted bool
	Limit          int
	Offset         int
}

type TestCaseList struct {
	Items  []TestCaseView `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func newTestCaseView(tc *models.TestCase) *TestCaseView {
	v := &TestCaseView{
		ID:             tc.ID,
		Name:           tc.Name,
		Preconditions:  tc.Preconditions,
		Description:    tc.Description,
		ExpectedResult: tc.ExpectedResult,
		CreatedAt:      tc.CreatedAt,
		UpdatedAt:      tc.UpdatedAt,
		IsDeleted:      tc.IsDeleted,
		DeletedAt:      tc.DeletedAt,
		Steps:          make([]StepView, 0, len(tc.Steps)),
		Tags:           make([]TagView, 0, len(tc.TagLinks)),
		Suites:         make([]SuiteLinkView, 0, len(tc.SuiteLinks)),
	}
	for _, st := range tc.Steps {
		attachments := []interface{}(st.Attachments)
		if attachments == nil {
			attachments = []interface{}{}
		}
		v.Steps = append(v.Steps, StepView{ID: st.ID, Position: st.Position, Action: st.Action, Expected: st.Expected, Attachments: attachments})
	}
	sort.Slice(v.Steps, func(i, j int) bool { return v.Steps[i].Position < v.Steps[j].Position })
	for _, l := range tc.TagLinks {
		if l.Tag != nil {
			v.Tags = append(v.Tags, TagView{ID: l.Tag.ID, Name: l.Tag.Name})
		}
	}
	sort.Slice(v.Tags, func(i, j int) bool { return v.Tags[i].Name < v.Tags[j].Name })
	for _, l := range tc.SuiteLinks {
		if l.Suite != nil {
			v.Suites = append(v.Suites, SuiteLinkView{ID: l.Suite.ID, Name: l.Suite.Name, Position: l.Position})
		}
	}
	return v
}

// ===== Validation =====

// buildSteps validates steps and assigns positions. An omitted position takes
// the running counter, which always sits one past the highest position seen.
func buildSteps(inputs []StepInput) ([]models.TestCaseStep, error) {
	steps := make([]models.TestCaseStep, 0, len(inputs))
	seen := make(map[int]bool, len(inputs))
	auto := 1
	for i, in := range inputs {
		action := strings.TrimSpace(in.Action)
		if action == "" {
			return nil, invalid(fmt.Sprintf("steps[%d].action", i), "must not be empty")
		}
		pos := auto
		if in.Position != nil {
			pos = *in.Position
			if pos < 1 {
				return nil, invalid(fmt.Sprintf("steps[%d].position", i), "must be at least 1")
			}
		}
		if seen[pos] {
			return nil, invalid(fmt.Sprintf("steps[%d].position", i), "duplicate step position %d", pos)
		}
		seen[pos] = true
		if pos+1 > auto {
			auto = pos + 1
		}
		steps = append(steps, models.TestCaseStep{
			Position:    pos,
			Action:      action,
			Expected:    in.Expected,
			Attachments: models.JSONArray(in.Attachments),
		})
	}
	return steps, nil
}

func (p *TestCasePayload) validate() (string, []models.TestCaseStep, error) {
	if p == nil {
		return "", nil, invalid("", "request body is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "", nil, invalid("name", "is required")
	}
	steps, err := buildSteps(p.Steps)
	if err != nil {
		return "", nil, err
	}
	return name, steps, nil
}

// ===== Writer =====

func (s *testCaseService) Create(ctx context.Context, payload *TestCasePayload) (*TestCaseView, error) {
	return s.write(ctx, 0, payload)
}

func (s *testCaseService) Update(ctx context.Context, id uint, payload *TestCasePayload) (*TestCaseView, error) {
	return s.write(ctx, id, payload)
}

// write creates (id == 0) or fully replaces a test case in one transaction.
func (s *testCaseService) write(ctx context.Context, id uint, payload *TestCasePayload) (*TestCaseView, error) {
	name, steps, err := payload.validate()
	if err != nil {
		return nil, err
	}

	var loaded *models.TestCase
	var warnings []Warning
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if id != 0 {
			if _, err := tx.TestCases.FindByID(ctx, id, false); err != nil {
				return mapStoreError(err, "test case", id, "")
			}
		}

		res := &resolver{tx: tx, log: s.log, metrics: s.metrics}
		tagIDs, tagWarnings, err := res.resolveTags(ctx, payload.Tags)
		if err != nil {
			return err
		}
		links, suiteWarnings, err := res.resolveSuites(ctx, id, payload.SuiteLinks)
		if err != nil {
			return err
		}
		warnings = append(tagWarnings, suiteWarnings...)

		tc := &models.TestCase{
			ID:             id,
			Name:           name,
			Preconditions:  payload.Preconditions,
			Description:    payload.Description,
			ExpectedResult: payload.ExpectedResult,
		}
		conflict := fmt.Sprintf("test case with name %q already exists", name)
		if id == 0 {
			err = tx.TestCases.Create(ctx, tc)
		} else {
			err = tx.TestCases.Update(ctx, tc)
		}
		if err != nil {
			return mapStoreError(err, "test case", id, conflict)
		}

		if err := tx.TestCases.ReplaceSteps(ctx, tc.ID, steps); err != nil {
			return mapStoreError(err, "test case", tc.ID, "duplicate step position")
		}
		if err := tx.TestCases.ReplaceTags(ctx, tc.ID, tagIDs); err != nil {
			return err
		}
		if err := tx.TestCases.ReplaceSuiteLinks(ctx, tc.ID, links); err != nil {
			return err
		}

		loaded, err = tx.TestCases.FindByID(ctx, tc.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := newTestCaseView(loaded)
	view.Warnings = warnings
	if id == 0 {
		s.log.InfoContext(ctx, "test case created", "test_case_id", view.ID, "steps", len(view.Steps), "warnings", len(warnings))
	} else {
		s.log.InfoContext(ctx, "test case updated", "test_case_id", view.ID, "steps", len(view.Steps), "warnings", len(warnings))
	}
	return view, nil
}

// ===== Reads and deletes =====

func (s *testCaseService) Get(ctx context.Context, id uint, includeDeleted bool) (*TestCaseView, error) {
	tc, err := s.store.TestCases.FindByID(ctx, id, includeDeleted)
	if err != nil {
		return nil, mapStoreError(err, "test case", id, "")
	}
	return newTestCaseView(tc), nil
}

func (s *testCaseService) List(ctx context.Context, query ListTestCasesQuery) (*TestCaseList, error) {
	if query.Offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}
	if query.Limit < 0 {
		return nil, invalid("limit", "must not be negative")
	}
	limit := pagination.Limit(query.Limit, s.listing.TestCasePageLimit, s.listing.MaxLimit)

	cases, total, err := s.store.TestCases.FindAll(ctx, query.IncludeDeleted, limit, query.Offset)
	if err != nil {
		return nil, err
	}
	list := &TestCaseList{Items: make([]TestCaseView, 0, len(cases)), Total: total, Limit: limit, Offset: query.Offset}
	for i := range cases {
		list.Items = append(list.Items, *newTestCaseView(&cases[i]))
	}
	return list, nil
}

func (s *testCaseService) Delete(ctx context.Context, id uint) error {
	if err := s.store.TestCases.SoftDelete(ctx, id); err != nil {
		return mapStoreError(err, "test case", id, "")
	}
	s.log.InfoContext(ctx, "test case deleted", "test_case_id", id)
	return nil
}

// Purge physically removes a case with its steps, links and attachments.
func (s *testCaseService) Purge(ctx context.Context, id uint) error {
	if _, err := s.store.TestCases.FindByID(ctx, id, true); err != nil {
		return mapStoreError(err, "test case", id, "")
	}
	attachments, err := s.store.Attachments.FindByTestCase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.TestCases.Purge(ctx, id); err != nil {
		return mapStoreError(err, "test case", id, "")
	}

	if s.files != nil {
		for _, a := range attachments {
			if err := s.files.Delete(ctx, refOf(&a)); err != nil {
				s.log.WarnContext(ctx, "failed to remove attachment object", "test_case_id", id, "object_name", a.ObjectName, "error", err)
			}
		}
	}
	s.log.InfoContext(ctx, "test case purged", "test_case_id", id, "attachments", len(attachments))
	return nil
}
