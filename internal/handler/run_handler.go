package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"testops/internal/allure"
	"testops/internal/config"
	"testops/internal/service"

	"github.com/gin-gonic/gin"
)

// RunHandler 测试执行记录处理器
type RunHandler struct {
	runs    service.TestRunService
	reports service.ReportService
	upload  config.UploadConfig
	log     *slog.Logger
}

// NewRunHandler 创建处理器
func NewRunHandler(runs service.TestRunService, reports service.ReportService, upload config.UploadConfig, log *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, reports: reports, upload: upload, log: log}
}

// RegisterRoutes 注册路由
func (h *RunHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.POST("/runs", h.CreateRun)
		api.POST("/runs/upload", h.UploadRun)
		api.GET("/runs/:id", h.GetRun)
		api.DELETE("/runs/:id", h.DeleteRun)
		api.GET("/runs/:id/report", h.GetReport)
		api.GET("/runs", h.ListRuns)
	}

	// Legacy paths kept for existing report tooling
	r.DELETE("/delete_test_run/:id", h.DeleteRun)
	r.GET("/reports/:id", h.GetReport)
}

func (h *RunHandler) CreateRun(c *gin.Context) {
	var req service.CreateRunRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	run, err := h.runs.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v2/runs/%d", run.ID))
	c.JSON(http.StatusCreated, run)
}

// UploadRun accepts Allure result files in the multipart field "files".
func (h *RunHandler) UploadRun(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, h.log, &service.ValidationError{Field: "files", Message: "a multipart form is required"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respondError(c, h.log, &service.ValidationError{Field: "files", Message: "at least one file is required"})
		return
	}

	var total int64
	for _, fh := range headers {
		total += fh.Size
	}
	if total > h.upload.MaxTotalSize {
		respondError(c, h.log, &service.ValidationError{
			Field:   "files",
			Message: fmt.Sprintf("total upload size %d exceeds the limit of %d bytes", total, h.upload.MaxTotalSize),
		})
		return
	}

	files := make([]allure.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		files = append(files, allure.File{Name: fh.Filename, Data: data})
	}

	result, err := h.runs.Upload(c.Request.Context(), files)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	run, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *RunHandler) DeleteRun(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.runs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "test run deleted"})
}

// GetReport streams the run's single-file Allure report, generating it first
// when none is stored.
func (h *RunHandler) GetReport(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	rep, err := h.reports.GetOrGenerate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer rep.Body.Close()

	c.DataFromReader(http.StatusOK, -1, "text/html; charset=utf-8", rep.Body, nil)
}

// ListRuns pages through runs; stand and status may repeat or hold
// comma-separated values.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	page, err := h.runs.List(c.Request.Context(), service.RunListQuery{
		Cursor:        c.Query("cursor"),
		Direction:     c.Query("direction"),
		Limit:         limit,
		Stands:        c.QueryArray("stand"),
		Statuses:      c.QueryArray("status"),
		StartDateFrom: c.Query("start_date_from"),
		StartDateTo:   c.Query("start_date_to"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read form file %q: %w", fh.Filename, err)
	}
	return data, nil
}
