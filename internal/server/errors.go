package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/authorization"
	creditdomain "github.com/smallbiznis/rentledger/internal/credit/domain"
	expensedomain "github.com/smallbiznis/rentledger/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/latefee"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/settings"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, db.ErrPersistence):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	propertydomain.ErrInvalidName,
	propertydomain.ErrInvalidPaymentMode,
	propertydomain.ErrInvalidPaymentInfo,
	propertydomain.ErrInvalidUnitNumber,
	propertydomain.ErrInvalidRentAmount,
	tenantdomain.ErrInvalidName,
	tenantdomain.ErrInvalidEmail,
	tenantdomain.ErrInvalidDeposit,
	tenantdomain.ErrInvalidLeaseDates,
	invoicedomain.ErrInvalidTenant,
	invoicedomain.ErrInvalidAmount,
	invoicedomain.ErrInvalidPeriod,
	invoicedomain.ErrInvalidDates,
	invoicedomain.ErrInvalidBalance,
	invoicedomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidPageToken,
	invoicedomain.ErrInvalidDateFilter,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidMethod,
	paymentdomain.ErrInvalidTenant,
	paymentdomain.ErrInvalidPageToken,
	creditdomain.ErrInvalidAmount,
	latefee.ErrInvalidAmount,
	settings.ErrInvalidKey,
	settings.ErrInvalidValue,
	expensedomain.ErrInvalidName,
	expensedomain.ErrInvalidAmount,
	expensedomain.ErrInvalidDescription,
	expensedomain.ErrInvalidSubcategory,
	expensedomain.ErrInvalidDateFilter,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, scheduler.ErrJobInProgress),
		errors.Is(err, propertydomain.ErrDuplicateUnitNumber),
		errors.Is(err, tenantdomain.ErrUnitOccupied),
		errors.Is(err, tenantdomain.ErrLeaseEnded),
		errors.Is(err, invoicedomain.ErrDuplicatePeriod),
		errors.Is(err, creditdomain.ErrInsufficientCredit),
		errors.Is(err, expensedomain.ErrDuplicateCategory),
		errors.Is(err, expensedomain.ErrDuplicateSubcategory):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, scheduler.ErrJobInProgress):
		return "job already running"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return strings.ReplaceAll(rootError(err).Error(), "_", " ")
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrTenantNotFound),
		errors.Is(err, propertydomain.ErrApartmentNotFound),
		errors.Is(err, propertydomain.ErrUnitNotFound),
		errors.Is(err, expensedomain.ErrNotFound),
		errors.Is(err, expensedomain.ErrCategoryNotFound),
		errors.Is(err, expensedomain.ErrSubcategoryNotFound):
		return true
	default:
		return false
	}
}

func rootError(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_late_fee":
		return "late_fee"
	case "invalid_setting_key":
		return "key"
	case "invalid_setting_value":
		return "value"
	case "invalid_payment_method":
		return "method"
	case "invalid_date_filter":
		return "from"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_amount":
		return "amount must be greater than zero"
	case "invalid_page_token":
		return "invalid page token"
	default:
		return "invalid value"
	}
}
