package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	merchantdomain "github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/pkg/errs"
)

type errorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware maps classified service errors onto HTTP statuses.
// Internal details never leak to clients.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if isNotFound(err) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "resource not found",
			Fields:  errs.FieldsOf(err),
		}
	}

	switch errs.KindOf(err) {
	case errs.MalformedInput:
		return http.StatusBadRequest, errorPayload{
			Type:    "malformed_input",
			Message: err.Error(),
			Fields:  errs.FieldsOf(err),
		}
	case errs.Unauthorized:
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errs.Validation:
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
			Fields:  errs.FieldsOf(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, invoicedomain.ErrNotFound) ||
		errors.Is(err, merchantdomain.ErrNotFound)
}
