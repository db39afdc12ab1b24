package handler

import (
	"log/slog"
	"net/http"

	"testops/internal/service"

	"github.com/gin-gonic/gin"
)

// SuiteHandler 测试套件处理器
type SuiteHandler struct {
	suites service.TestSuiteService
	log    *slog.Logger
}

// NewSuiteHandler 创建处理器
func NewSuiteHandler(suites service.TestSuiteService, log *slog.Logger) *SuiteHandler {
	return &SuiteHandler{suites: suites, log: log}
}

// RegisterRoutes 注册路由
func (h *SuiteHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.POST("/suites", h.CreateSuite)
		api.GET("/suites/tree", h.GetSuiteTree)
		api.PUT("/suites/:id", h.UpdateSuite)
		api.DELETE("/suites/:id", h.DeleteSuite)
		api.GET("/suites/:id", h.GetSuite)
	}
}

func (h *SuiteHandler) CreateSuite(c *gin.Context) {
	var req service.SuiteRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	suite, err := h.suites.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, suite)
}

func (h *SuiteHandler) UpdateSuite(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req service.SuiteRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.log, err)
		return
	}

	suite, err := h.suites.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, suite)
}

func (h *SuiteHandler) DeleteSuite(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.suites.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "suite deleted"})
}

func (h *SuiteHandler) GetSuite(c *gin.Context) {
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

	suite, err := h.suites.Get(c.Request.Context(), id, includeDeleted)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, suite)
}

func (h *SuiteHandler) GetSuiteTree(c *gin.Context) {
	tree, err := h.suites.Tree(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, tree)
}
