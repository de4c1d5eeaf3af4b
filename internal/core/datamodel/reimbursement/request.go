package reimbursement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stored status values.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

type Request struct {
	ID               string          `gorm:"primaryKey;type:uuid"`
	UserID           string          `gorm:"column:user_id;type:uuid;not null;index"`
	Approver         string          `gorm:"column:approver;type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Category         string          `gorm:"column:category;not null"`
	ExpenseDate      time.Time       `gorm:"column:expense_date;type:date;not null;index"`
	Status           string          `gorm:"column:status;not null;index"`
	Description      string          `gorm:"column:description;not null"`
	Merchant         string          `gorm:"column:merchant;not null"`
	Notes            string          `gorm:"column:notes"`
	ReceiptURL       *string         `gorm:"column:receipt_url"`
	ApprovalComments *string         `gorm:"column:approval_comments"`
	ProcessedAt      *time.Time      `gorm:"column:processed_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string {
	return "reimbursement_requests"
}
