package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"testops/internal/service"

	"github.com/gin-gonic/gin"
)

// TestCaseHandler HTTP处理器
type TestCaseHandler struct {
	cases       service.TestCaseService
	attachments service.AttachmentService
	log         *slog.Logger
}

// NewTestCaseHandler 创建处理器
func NewTestCaseHandler(cases service.TestCaseService, attachments service.AttachmentService, log *slog.Logger) *TestCaseHandler {
	return &TestCaseHandler{cases: cases, attachments: attachments, log: log}
}

// RegisterRoutes 注册路由
func (h *TestCaseHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.POST("/test-cases", h.CreateTestCase)
		api.PUT("/test-cases/:id", h.UpdateTestCase)
		api.DELETE("/test-cases/:id", h.DeleteTestCase)
		api.DELETE("/test-cases/:id/purge", h.PurgeTestCase)
		api.GET("/test-cases/:id", h.GetTestCase)
		api.GET("/test-cases", h.ListTestCases)

		// Attachments
		api.POST("/test-cases/:id/attachments", h.UploadAttachment)
		api.GET("/test-cases/:id/attachments", h.ListAttachments)
		api.GET("/test-cases/:id/attachments/:attachment_id", h.DownloadAttachment)
		api.DELETE("/test-cases/:id/attachments/:attachment_id", h.DeleteAttachment)
	}
}

// ===== Test Case Handlers =====

func (h *TestCaseHandler) CreateTestCase(c *gin.Context) {
	var req service.TestCasePayload
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	view, err := h.cases.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v2/test-cases/%d", view.ID))
	c.JSON(http.StatusCreated, view)
}

func (h *TestCaseHandler) UpdateTestCase(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req service.TestCasePayload
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	view, err := h.cases.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *TestCaseHandler) DeleteTestCase(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.cases.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "test case deleted"})
}

func (h *TestCaseHandler) PurgeTestCase(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.cases.Purge(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "test case purged"})
}

func (h *TestCaseHandler) GetTestCase(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	includeDeleted, err := queryBool(c, "include_deleted")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	view, err := h.cases.Get(c.Request.Context(), id, includeDeleted)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *TestCaseHandler) ListTestCases(c *gin.Context) {
	var query service.ListTestCasesQuery
	var err error
	if query.IncludeDeleted, err = queryBool(c, "include_deleted"); err != nil {
		respondError(c, h.log, err)
		return
	}
	if query.Limit, err = queryInt(c, "limit"); err != nil {
		respondError(c, h.log, err)
		return
	}
	if query.Offset, err = queryInt(c, "offset"); err != nil {
		respondError(c, h.log, err)
		return
	}

	list, err := h.cases.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ===== Attachment Handlers =====

func (h *TestCaseHandler) UploadAttachment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.log, &service.ValidationError{Field: "file", Message: "a multipart file field named \"file\" is required"})
		return
	}
	data, err := readFormFile(fh)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	attachment, err := h.attachments.Upload(c.Request.Context(), id, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

func (h *TestCaseHandler) ListAttachments(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	attachments, err := h.attachments.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, attachments)
}

func (h *TestCaseHandler) DownloadAttachment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	attachmentID, err := parseID(c, "attachment_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	attachment, body, err := h.attachments.Open(c.Request.Context(), id, attachmentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer body.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, attachment.Size, contentType, body, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(attachment.OriginalFilename),
	})
}

func (h *TestCaseHandler) DeleteAttachment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	attachmentID, err := parseID(c, "attachment_id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.attachments.Delete(c.Request.Context(), id, attachmentID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "attachment deleted"})
}
