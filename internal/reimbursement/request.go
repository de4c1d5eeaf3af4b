package reimbursement

import (
	"strings"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	requestDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = requestDatamodel.StatusPending
	StatusApproved Status = requestDatamodel.StatusApproved
	StatusRejected Status = requestDatamodel.StatusRejected
)

func Statuses() []string {
	return []string{string(StatusPending), string(StatusApproved), string(StatusRejected)}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected:
		return true
	case StatusPending:
		return false
	}
	return false
}

type Request struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Approver         string            `json:"approver"`
	Amount           decimal.Decimal   `json:"amount"`
	Category         category.Category `json:"category"`
	ExpenseDate      time.Time         `json:"expense_date"`
	Status           Status            `json:"status"`
	Description      string            `json:"description"`
	Merchant         string            `json:"merchant"`
	Notes            string            `json:"notes,omitempty"`
	Receipts         []string          `json:"receipts"`
	ApprovalComments *string           `json:"approval_comments,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// ReceiptPrefix is the blob folder holding the request's receipts.
func (r *Request) ReceiptPrefix() string {
	return ReceiptPrefix(r.UserID, r.ID)
}

// Decision is the outcome recorded when a request leaves Pending.
type Decision struct {
	Status      Status
	Comments    *string
	ProcessedAt time.Time
}

func ToDataModel(r *Request) *requestDatamodel.Request {
	return &requestDatamodel.Request{
		ID:               r.ID,
		UserID:           r.UserID,
		Approver:         r.Approver,
		Amount:           r.Amount,
		Category:         string(r.Category),
		ExpenseDate:      r.ExpenseDate,
		Status:           string(r.Status),
		Description:      r.Description,
		Merchant:         r.Merchant,
		Notes:            r.Notes,
		ReceiptURL:       JoinReceipts(r.Receipts),
		ApprovalComments: r.ApprovalComments,
		ProcessedAt:      r.ProcessedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func FromDataModel(m *requestDatamodel.Request) *Request {
	return &Request{
		ID:               m.ID,
		UserID:           m.UserID,
		Approver:         m.Approver,
		Amount:           m.Amount,
		Category:         category.Category(m.Category),
		ExpenseDate:      m.ExpenseDate.UTC(),
		Status:           Status(m.Status),
		Description:      m.Description,
		Merchant:         m.Merchant,
		Notes:            m.Notes,
		Receipts:         SplitReceipts(m.ReceiptURL),
		ApprovalComments: m.ApprovalComments,
		ProcessedAt:      m.ProcessedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func FromDataModelSlice(models []*requestDatamodel.Request) []*Request {
	out := make([]*Request, len(models))
	for i, m := range models {
		out[i] = FromDataModel(m)
	}
	return out
}

// JoinReceipts encodes the URL list for the receipt_url column.
func JoinReceipts(urls []string) *string {
	if len(urls) == 0 {
		return nil
	}
	joined := strings.Join(urls, ",")
	return &joined
}

func SplitReceipts(raw *string) []string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return []string{}
	}
	parts := strings.Split(*raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
