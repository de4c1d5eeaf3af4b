package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeUnprocessable ErrorType = "UNPROCESSABLE"
	ErrorTypeUnavailable   ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount      ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDescription ErrorCode = "INVALID_DESCRIPTION"
	ErrCodeInvalidCategory    ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidDate        ErrorCode = "INVALID_DATE"
	ErrCodeInvalidStatus      ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidRole        ErrorCode = "INVALID_ROLE"
	ErrCodeInvalidManager     ErrorCode = "INVALID_MANAGER"
	ErrCodeAmountTooLow       ErrorCode = "AMOUNT_TOO_LOW"

	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeRequestNotFound    ErrorCode = "REQUEST_NOT_FOUND"
	ErrCodeFileNotFound       ErrorCode = "FILE_NOT_FOUND"
	ErrCodeUnauthorizedAccess ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeEmailTaken         ErrorCode = "EMAIL_TAKEN"

	ErrCodeBudgetExceeded       ErrorCode = "BUDGET_EXCEEDED"
	ErrCodeNoApproverAssigned   ErrorCode = "NO_APPROVER_ASSIGNED"
	ErrCodeNotEditable          ErrorCode = "NOT_EDITABLE"
	ErrCodeNotDeletable         ErrorCode = "NOT_DELETABLE"
	ErrCodeAlreadyDecided       ErrorCode = "ALREADY_DECIDED"
	ErrCodeBulkDecisionFailed   ErrorCode = "BULK_DECISION_FAILED"
	ErrCodeStoreUnavailable     ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeBlobStoreUnavailable ErrorCode = "BLOB_STORE_UNAVAILABLE"
	ErrCodeReceiptUploadFailed  ErrorCode = "RECEIPT_UPLOAD_FAILED"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenRevoked       ErrorCode = "TOKEN_REVOKED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so callers can compare
// against the exported sentinels even when a fresh instance was returned.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping cause. Sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// BudgetShortfall is attached to BUDGET_EXCEEDED errors so clients can show
// the exact amount still available.
type BudgetShortfall struct {
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

type BulkDecisionFailure struct {
	IDs []string `json:"ids"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnavailableError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// NewBudgetExceededError reports a submission that does not fit in the
// remaining yearly budget. A negative available amount is reported as zero.
func NewBudgetExceededError(available, requested decimal.Decimal) *AppError {
	if available.IsNegative() {
		available = decimal.Zero
	}
	return &AppError{
		Type:       ErrorTypeUnprocessable,
		Code:       ErrCodeBudgetExceeded,
		Message:    fmt.Sprintf("amount exceeds remaining budget: %s available, %s requested", available.StringFixed(2), requested.StringFixed(2)),
		StatusCode: http.StatusUnprocessableEntity,
		Details: BudgetShortfall{
			Available: available,
			Requested: requested,
			Shortfall: requested.Sub(available),
		},
	}
}

func NewBulkDecisionFailedError(ids []string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       ErrCodeBulkDecisionFailed,
		Message:    fmt.Sprintf("%d request(s) are no longer pending; nothing was updated", len(ids)),
		StatusCode: http.StatusConflict,
		Details:    BulkDecisionFailure{IDs: ids},
	}
}

func NewStoreUnavailableError(cause error) *AppError {
	return ErrStoreUnavailable.WithCause(cause)
}

func NewBlobStoreUnavailableError(cause error) *AppError {
	return ErrBlobStoreUnavailable.WithCause(cause)
}

func NewReceiptUploadError(cause error) *AppError {
	return ErrReceiptUploadFailed.WithCause(cause)
}

var (
	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrRequestNotFound    = NewNotFoundError("Reimbursement request not found", ErrCodeRequestNotFound)
	ErrFileNotFound       = NewNotFoundError("File not found", ErrCodeFileNotFound)
	ErrUnauthorizedAccess = NewForbiddenError("unauthorized access to resource", ErrCodeUnauthorizedAccess)
	ErrEmailTaken         = NewConflictError("Email is already registered", ErrCodeEmailTaken)

	ErrNoApproverAssigned = NewValidationError("No approver is assigned to this user", ErrCodeNoApproverAssigned)
	ErrNotEditable        = NewConflictError("Only pending requests can be edited", ErrCodeNotEditable)
	ErrNotDeletable       = NewConflictError("Only pending requests can be deleted", ErrCodeNotDeletable)
	ErrAlreadyDecided     = NewConflictError("Request has already been decided", ErrCodeAlreadyDecided)

	ErrStoreUnavailable     = NewUnavailableError("Service temporarily unavailable, please try again", ErrCodeStoreUnavailable)
	ErrBlobStoreUnavailable = NewUnavailableError("File storage temporarily unavailable, please try again", ErrCodeBlobStoreUnavailable)
	ErrReceiptUploadFailed  = NewUnavailableError("Request saved but receipts could not be uploaded", ErrCodeReceiptUploadFailed)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrTokenRevoked       = NewUnauthorizedError("Token has been revoked", ErrCodeTokenRevoked)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is, or wraps, an AppError carrying target's code.
func Is(err error, target *AppError) bool {
	return errors.Is(err, target)
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
