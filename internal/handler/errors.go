package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"testops/internal/service"

	"github.com/gin-gonic/gin"
)

// Error codes of the error body
const (
	codeValidation = "validation_error"
	codeConflict   = "conflict"
	codeNotFound   = "not_found"
	codeInternal   = "internal_error"
)

// respondError writes the error body for err. Unknown errors are logged and
// answered with a generic message.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		nerr *service.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": codeValidation, "message": verr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"error": codeConflict, "message": cerr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": codeNotFound, "message": nerr.Error()})
	default:
		log.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": codeInternal, "message": "internal server error"})
	}
}

// bindJSON decodes the body into obj. Decoding errors become validation errors.
func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return &service.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, &service.ValidationError{Field: param, Message: "must be a positive integer"}
	}
	return uint(id), nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &service.ValidationError{Field: key, Message: "must be a boolean"}
	}
	return v, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: key, Message: "must be an integer"}
	}
	return v, nil
}
