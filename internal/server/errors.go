package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	expensedomain "github.com/smallbiznis/agencydesk/internal/expense/domain"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	teamdomain "github.com/smallbiznis/agencydesk/internal/team/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrInvalidRequest = errors.New("invalid_request")
)

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
		c.Header("Content-Type", "application/json")
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
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "validation error",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}
	case isArchivedError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "client_archived",
			Message: "client is archived",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, clientdomain.ErrInvalidID),
		errors.Is(err, clientdomain.ErrInvalidName),
		errors.Is(err, clientdomain.ErrInvalidBillingMode),
		errors.Is(err, clientdomain.ErrInvalidTier),
		errors.Is(err, clientdomain.ErrInvalidStatus),
		errors.Is(err, billingdomain.ErrInvalidClient),
		errors.Is(err, paymentdomain.ErrInvalidClient),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, postledgerdomain.ErrInvalidClient),
		errors.Is(err, postledgerdomain.ErrInvalidPlatform),
		errors.Is(err, postledgerdomain.ErrInvalidMonthYear),
		errors.Is(err, postledgerdomain.ErrInvalidCount),
		errors.Is(err, postledgerdomain.ErrNotPerPost),
		errors.Is(err, teamdomain.ErrInvalidID),
		errors.Is(err, teamdomain.ErrInvalidName),
		errors.Is(err, teamdomain.ErrInvalidSalary),
		errors.Is(err, expensedomain.ErrInvalidID),
		errors.Is(err, expensedomain.ErrInvalidLabel),
		errors.Is(err, expensedomain.ErrInvalidAmount),
		errors.Is(err, expensedomain.ErrInvalidMonthYear):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, billingdomain.ErrClientNotFound),
		errors.Is(err, paymentdomain.ErrClientNotFound),
		errors.Is(err, postledgerdomain.ErrClientNotFound),
		errors.Is(err, teamdomain.ErrNotFound),
		errors.Is(err, expensedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrAlreadyArchived),
		errors.Is(err, clientdomain.ErrNotArchived),
		errors.Is(err, paymentdomain.ErrDuplicatePayment):
		return true
	default:
		return false
	}
}

func isArchivedError(err error) bool {
	return errors.Is(err, paymentdomain.ErrClientArchived) ||
		errors.Is(err, postledgerdomain.ErrClientArchived)
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation_error", err.Error()
	case isNotFoundError(err):
		return "not_found", "not_found"
	case isConflictError(err):
		return "conflict", err.Error()
	case isArchivedError(err):
		return "client_archived", "client_archived"
	default:
		return "internal_error", strings.SplitN(err.Error(), ":", 2)[0]
	}
}
