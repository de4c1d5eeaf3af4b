package user

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                  string          `gorm:"primaryKey;type:uuid"`
	Email               string          `gorm:"column:email;uniqueIndex;not null"`
	Name                string          `gorm:"column:name;not null"`
	Phone               string          `gorm:"column:phone"`
	Address             string          `gorm:"column:address"`
	PasswordHash        string          `gorm:"column:password_hash;not null"`
	Role                string          `gorm:"column:role;not null"`
	ManagerID           *string         `gorm:"column:manager_id;type:uuid;index"`
	ReimbursementBudget decimal.Decimal `gorm:"column:reimbursement_budget;type:numeric(12,2);not null"`
	IsActive            bool            `gorm:"column:is_active;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
