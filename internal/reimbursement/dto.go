package reimbursement

import (
	"strings"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

// MinAmount is the smallest amount a request may claim.
var MinAmount = decimal.RequireFromString("0.01")

// CreateRequestDTO carries a new claim. ExpenseDate is YYYY-MM-DD.
type CreateRequestDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Notes       string          `json:"notes"`
}

func (dto *CreateRequestDTO) Validate() *errors.AppError {
	return validateClaim(dto.Amount, dto.Category, dto.ExpenseDate, dto.Description, dto.Merchant, dto.Notes)
}

// UpdateRequestDTO replaces every editable field of a pending request.
type UpdateRequestDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Notes       string          `json:"notes"`
}

func (dto *UpdateRequestDTO) Validate() *errors.AppError {
	return validateClaim(dto.Amount, dto.Category, dto.ExpenseDate, dto.Description, dto.Merchant, dto.Notes)
}

func validateClaim(amount decimal.Decimal, cat, expenseDate, description, merchant, notes string) *errors.AppError {
	v := validation.NewValidator()
	v.Field("amount", amount).MinDecimal(MinAmount, errors.ErrCodeAmountTooLow)
	v.Field("category", cat).Required().OneOf(category.Names(), errors.ErrCodeInvalidCategory)
	v.Field("expense_date", expenseDate).Required().Date()
	v.Field("description", description).Required().MinLength(3).MaxLength(500)
	v.Field("merchant", merchant).Required().MinLength(2).MaxLength(200)
	v.Field("notes", notes).MaxLength(1000)
	return v.Validate()
}

type DecisionDTO struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

func (dto *DecisionDTO) Validate() *errors.AppError {
	return validateDecision(dto.Status, dto.Comments)
}

type BulkDecisionDTO struct {
	IDs      []string `json:"ids"`
	Status   string   `json:"status"`
	Comments string   `json:"comments"`
}

func (dto *BulkDecisionDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("ids", dto.IDs).Required()
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return validateDecision(dto.Status, dto.Comments)
}

// UniqueIDs returns IDs without blanks or repeats, in first-seen order.
func (dto *BulkDecisionDTO) UniqueIDs() []string {
	seen := make(map[string]struct{}, len(dto.IDs))
	out := make([]string, 0, len(dto.IDs))
	for _, id := range dto.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validateDecision(status, comments string) *errors.AppError {
	v := validation.NewValidator()
	v.Field("status", status).Required().OneOf([]string{string(StatusApproved), string(StatusRejected)}, errors.ErrCodeInvalidStatus)
	v.Field("comments", comments).MaxLength(1000)
	return v.Validate()
}

// ListFilter narrows request listings. Zero values mean "any".
type ListFilter struct {
	Status Status
	Year   int
}

func (f ListFilter) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("status", string(f.Status)).OneOf(Statuses(), errors.ErrCodeInvalidStatus)
	return v.Validate()
}

// ApprovalQueue selects one side of an approver's inbox.
type ApprovalQueue string

const (
	QueuePending ApprovalQueue = "pending"
	QueueDecided ApprovalQueue = "decided"
)

func ParseQueue(s string) (ApprovalQueue, error) {
	switch ApprovalQueue(s) {
	case "", QueuePending:
		return QueuePending, nil
	case QueueDecided:
		return QueueDecided, nil
	}
	return "", errors.NewValidationFieldError("queue", "queue must be one of: pending, decided", errors.ErrCodeValidationFailed)
}
