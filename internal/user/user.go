package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/user"
	"github.com/shopspring/decimal"
)

type User struct {
	ID                  string          `json:"id"`
	Email               string          `json:"email"`
	Name                string          `json:"name"`
	Phone               string          `json:"phone,omitempty"`
	Address             string          `json:"address,omitempty"`
	PasswordHash        string          `json:"-"`
	Role                Role            `json:"role"`
	ManagerID           *string         `json:"manager_id,omitempty"`
	ReimbursementBudget decimal.Decimal `json:"reimbursement_budget"`
	IsActive            bool            `json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AllocatedBudget is the yearly allocation the ledger works from. Roles
// without a budget always allocate zero, whatever is stored.
func (u *User) AllocatedBudget() decimal.Decimal {
	if !u.Role.HasBudget() {
		return decimal.Zero
	}
	return u.ReimbursementBudget
}

// Approver returns the user's manager id, if one is assigned.
func (u *User) Approver() (string, bool) {
	if u.ManagerID == nil || *u.ManagerID == "" {
		return "", false
	}
	return *u.ManagerID, true
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Phone:               u.Phone,
		Address:             u.Address,
		PasswordHash:        u.PasswordHash,
		Role:                string(u.Role),
		ManagerID:           u.ManagerID,
		ReimbursementBudget: u.ReimbursementBudget,
		IsActive:            u.IsActive,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Phone:               u.Phone,
		Address:             u.Address,
		PasswordHash:        u.PasswordHash,
		Role:                Role(u.Role),
		ManagerID:           u.ManagerID,
		ReimbursementBudget: u.ReimbursementBudget,
		IsActive:            u.IsActive,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func FromDataModelSlice(users []*userDatamodel.User) []*User {
	result := make([]*User, len(users))
	for i, u := range users {
		result[i] = FromDataModel(u)
	}
	return result
}
