package ledger

import (
	"context"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	"github.com/shopspring/decimal"
)

// Balance is one user's budget position for a calendar year. Available may
// be negative when allocations were lowered after requests were filed.
type Balance struct {
	UserID    string          `json:"user_id"`
	Year      int             `json:"year"`
	Allocated decimal.Decimal `json:"allocated"`
	Consumed  decimal.Decimal `json:"consumed"`
	Available decimal.Decimal `json:"available"`
}

// Remaining is Available clamped at zero, for display.
func (b *Balance) Remaining() decimal.Decimal {
	if b.Available.IsNegative() {
		return decimal.Zero
	}
	return b.Available
}

// Query selects the requests whose amounts count against a budget.
// From is inclusive, Until exclusive.
type Query struct {
	UserID    string
	Statuses  []string
	From      time.Time
	Until     time.Time
	ExcludeID string
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type ConsumptionReader interface {
	ListAmounts(ctx context.Context, q Query) ([]decimal.Decimal, error)
}

// YearRange returns [Jan 1 of year, Jan 1 of year+1) in UTC.
func YearRange(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

func sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
