package user

import (
	"strings"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const minPasswordLength = 8

// CreateUserDTO is the admin payload for adding a user.
type CreateUserDTO struct {
	Name                string          `json:"name"`
	Email               string          `json:"email"`
	Password            string          `json:"password"`
	Phone               string          `json:"phone"`
	Address             string          `json:"address"`
	Role                string          `json:"role"`
	ManagerID           *string         `json:"manager_id"`
	ReimbursementBudget decimal.Decimal `json:"reimbursement_budget"`
}

func (dto *CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MinLength(2).MaxLength(120)
	v.Field("email", dto.Email).Required().Email()
	v.Field("password", dto.Password).Required().MinLength(minPasswordLength)
	v.Field("role", dto.Role).Required().OneOf(RoleNames(), errors.ErrCodeInvalidRole)
	v.Field("reimbursement_budget", dto.ReimbursementBudget).MinDecimal(decimal.Zero, errors.ErrCodeInvalidAmount)
	v.Field("manager_id", dto.ManagerID).Custom(managerRequiredFor(dto.Role))
	return v.Validate()
}

// UpdateUserDTO replaces the admin-editable profile fields.
type UpdateUserDTO struct {
	Name                string          `json:"name"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	Address             string          `json:"address"`
	Role                string          `json:"role"`
	ManagerID           *string         `json:"manager_id"`
	ReimbursementBudget decimal.Decimal `json:"reimbursement_budget"`
}

func (dto *UpdateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MinLength(2).MaxLength(120)
	v.Field("email", dto.Email).Required().Email()
	v.Field("role", dto.Role).Required().OneOf(RoleNames(), errors.ErrCodeInvalidRole)
	v.Field("reimbursement_budget", dto.ReimbursementBudget).MinDecimal(decimal.Zero, errors.ErrCodeInvalidAmount)
	v.Field("manager_id", dto.ManagerID).Custom(managerRequiredFor(dto.Role))
	return v.Validate()
}

type ResetPasswordDTO struct {
	Password string `json:"password"`
}

func (dto *ResetPasswordDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("password", dto.Password).Required().MinLength(minPasswordLength)
	return v.Validate()
}

func managerRequiredFor(role string) func(interface{}) *errors.AppError {
	return func(value interface{}) *errors.AppError {
		r, err := ParseRole(role)
		if err != nil || !r.RequiresManager() {
			return nil
		}
		if id, _ := value.(*string); id == nil || strings.TrimSpace(*id) == "" {
			return errors.NewValidationFieldError("manager_id", "manager_id is required for role "+role, errors.ErrCodeInvalidManager)
		}
		return nil
	}
}

// normaliseManager drops the manager for roles that have none.
func normaliseManager(role Role, managerID *string) *string {
	if !role.RequiresManager() || managerID == nil || strings.TrimSpace(*managerID) == "" {
		return nil
	}
	id := strings.TrimSpace(*managerID)
	return &id
}
