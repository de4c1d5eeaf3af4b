package ledger

import (
	"context"
	"log/slog"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/shopspring/decimal"
)

// consuming lists the statuses that hold budget.
var consuming = []string{reimbursement.StatusPending, reimbursement.StatusApproved}

type Service struct {
	users    UserReader
	requests ConsumptionReader
	logger   *slog.Logger
}

func NewService(users UserReader, requests ConsumptionReader, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		requests: requests,
		logger:   logger,
	}
}

// AvailableBudget is the user's allocation for year minus the amounts of
// their pending and approved requests dated in that year.
func (s *Service) AvailableBudget(ctx context.Context, userID string, year int) (decimal.Decimal, error) {
	b, err := s.balance(ctx, userID, year, "")
	if err != nil {
		return decimal.Zero, err
	}
	return b.Available, nil
}

func (s *Service) Balance(ctx context.Context, userID string, year int) (*Balance, error) {
	return s.balance(ctx, userID, year, "")
}

// BalanceExcluding computes the balance as if excludeID had never been
// filed. Edits use it so a request does not count against itself.
func (s *Service) BalanceExcluding(ctx context.Context, userID string, year int, excludeID string) (*Balance, error) {
	return s.balance(ctx, userID, year, excludeID)
}

func (s *Service) balance(ctx context.Context, userID string, year int, excludeID string) (*Balance, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrUserNotFound
		}
		s.logger.Error("ledger: failed to load user", "error", err, "user_id", userID)
		return nil, storeError(err)
	}

	from, until := YearRange(year)
	amounts, err := s.requests.ListAmounts(ctx, Query{
		UserID:    userID,
		Statuses:  consuming,
		From:      from,
		Until:     until,
		ExcludeID: excludeID,
	})
	if err != nil {
		s.logger.Error("ledger: failed to load consumption", "error", err, "user_id", userID, "year", year)
		return nil, storeError(err)
	}

	allocated := u.AllocatedBudget()
	consumed := sum(amounts)
	return &Balance{
		UserID:    userID,
		Year:      year,
		Allocated: allocated,
		Consumed:  consumed,
		Available: allocated.Sub(consumed),
	}, nil
}

func storeError(err error) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}
	return errors.NewStoreUnavailableError(err)
}
