package handler

import (
	"log/slog"
	"net/http"

	"testops/internal/service"

	"github.com/gin-gonic/gin"
)

// TagHandler 标签处理器
type TagHandler struct {
	tags service.TagService
	log  *slog.Logger
}

// NewTagHandler 创建处理器
func NewTagHandler(tags service.TagService, log *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, log: log}
}

// RegisterRoutes 注册路由
func (h *TagHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.GET("/tags", h.ListTags)
		api.DELETE("/tags/:id", h.DeleteTag)
	}
}

func (h *TagHandler) ListTags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, tags)
}

func (h *TagHandler) DeleteTag(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.tags.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}
