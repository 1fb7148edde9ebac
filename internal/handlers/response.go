package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	"github.com/yungbote/specimenhub-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondWarehouseError maps the warehouse error taxonomy onto HTTP statuses.
func RespondWarehouseError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		RespondError(c, apiErr.Status, apiErr.Code, apiErr)
		return
	}

	var notFound *warehouse.SetNotFoundError
	if errors.As(err, &notFound) {
		RespondError(c, http.StatusNotFound, "identifier_set_not_found", err)
		return
	}
	var ambiguous *warehouse.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		RespondError(c, http.StatusConflict, "ambiguous_sample_match", err)
		return
	}
	if session.IsNotFound(err) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal", err)
}
