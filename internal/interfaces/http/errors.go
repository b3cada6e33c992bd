package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/sitequote/internal/domain/apperror"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindInvalidTransition, apperror.KindConflict, apperror.KindAlreadyConverted:
		return http.StatusConflict
	case apperror.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the response envelope
func (h *Handlers) writeError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("Unclassified error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   &ErrorBody{Kind: "Internal", Message: "internal error"},
		})
		return
	}

	status := statusFor(appErr.Kind)
	body := &ErrorBody{Kind: string(appErr.Kind), Message: appErr.Error()}
	if appErr.Kind == apperror.KindAlreadyConverted {
		body.InvoiceID = appErr.Ref
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "kind", appErr.Kind, "error", err)
		// the wrapped cause may name internals
		body.Message = string(appErr.Kind)
		if appErr.Op != "" {
			body.Message = appErr.Op + ": " + body.Message
		}
	}
	c.JSON(status, Response{Success: false, Error: body})
}
