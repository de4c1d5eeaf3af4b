package ledger_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
)

func TestLedger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ledger Suite")
}

type stubUsers map[string]*user.User

func (s stubUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return u, nil
}

type row struct {
	id     string
	userID string
	amount decimal.Decimal
	status string
	date   time.Time
}

// stubRequests filters rows the way the SQL repository does.
type stubRequests struct {
	rows  []row
	err   error
	calls int
}

func (s *stubRequests) ListAmounts(_ context.Context, q ledger.Query) ([]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []decimal.Decimal
	for _, r := range s.rows {
		if r.userID != q.UserID || r.id == q.ExcludeID {
			continue
		}
		if r.date.Before(q.From) || !r.date.Before(q.Until) {
			continue
		}
		for _, st := range q.Statuses {
			if st == r.status {
				out = append(out, r.amount)
			}
		}
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Service", func() {
	var (
		users    stubUsers
		requests *stubRequests
		svc      *ledger.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		mgr := "mgr-1"
		users = stubUsers{
			"emp-1":   {ID: "emp-1", Role: user.RoleEmployee, ManagerID: &mgr, ReimbursementBudget: decimal.NewFromInt(1000), IsActive: true},
			"admin-1": {ID: "admin-1", Role: user.RoleAdmin, ReimbursementBudget: decimal.NewFromInt(5000), IsActive: true},
		}
		requests = &stubRequests{rows: []row{
			{id: "r1", userID: "emp-1", amount: decimal.NewFromInt(400), status: reimbursement.StatusApproved, date: day(2024, time.March, 3)},
		}}
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = ledger.NewService(users, requests, lg)
		ctx = context.Background()
	})

	It("subtracts approved requests of the year from the allocation", func() {
		// Given an allocation of 1000 and one approved request of 400
		// When the 2024 budget is read
		available, err := svc.AvailableBudget(ctx, "emp-1", 2024)

		// Then 600 remains
		Expect(err).NotTo(HaveOccurred())
		Expect(available.Equal(decimal.NewFromInt(600))).To(BeTrue())
	})

	It("returns the same value when read twice without writes", func() {
		first, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		second, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Equal(first)).To(BeTrue())
		Expect(requests.calls).To(Equal(2))
	})

	It("counts pending requests but not rejected ones", func() {
		requests.rows = append(requests.rows,
			row{id: "r2", userID: "emp-1", amount: decimal.NewFromInt(100), status: reimbursement.StatusPending, date: day(2024, time.June, 1)},
			row{id: "r3", userID: "emp-1", amount: decimal.NewFromInt(300), status: reimbursement.StatusRejected, date: day(2024, time.June, 2)},
		)

		b, err := svc.Balance(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Consumed.Equal(decimal.NewFromInt(500))).To(BeTrue())
		Expect(b.Available.Equal(decimal.NewFromInt(500))).To(BeTrue())
	})

	It("only counts requests dated inside the year", func() {
		requests.rows = append(requests.rows,
			row{id: "r2", userID: "emp-1", amount: decimal.NewFromInt(50), status: reimbursement.StatusApproved, date: day(2023, time.December, 31)},
			row{id: "r3", userID: "emp-1", amount: decimal.NewFromInt(70), status: reimbursement.StatusApproved, date: day(2024, time.December, 31)},
			row{id: "r4", userID: "emp-1", amount: decimal.NewFromInt(90), status: reimbursement.StatusApproved, date: day(2025, time.January, 1)},
		)

		available, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		Expect(available.Equal(decimal.NewFromInt(530))).To(BeTrue())
	})

	It("leaves the excluded request out of consumption", func() {
		b, err := svc.BalanceExcluding(ctx, "emp-1", 2024, "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Available.Equal(decimal.NewFromInt(1000))).To(BeTrue())
	})

	It("gives roles without a budget nothing to spend", func() {
		available, err := svc.AvailableBudget(ctx, "admin-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		Expect(available.IsZero()).To(BeTrue())
	})

	It("returns the same answer on repeated reads", func() {
		first, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		second, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Equal(second)).To(BeTrue())
	})

	It("clamps a negative balance to zero for display", func() {
		users["emp-1"].ReimbursementBudget = decimal.NewFromInt(300)
		b, err := svc.Balance(ctx, "emp-1", 2024)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Available.IsNegative()).To(BeTrue())
		Expect(b.Remaining().IsZero()).To(BeTrue())
	})

	It("reports unknown users as not found", func() {
		_, err := svc.AvailableBudget(ctx, "ghost", 2024)
		Expect(errors.Is(err, errors.ErrUserNotFound)).To(BeTrue())
	})

	It("reports store failures once without retrying", func() {
		requests.err = fmt.Errorf("connection refused")
		_, err := svc.AvailableBudget(ctx, "emp-1", 2024)
		Expect(errors.Is(err, errors.ErrStoreUnavailable)).To(BeTrue())
		Expect(requests.calls).To(Equal(1))
	})
})

var _ = Describe("Handler", func() {
	It("returns the caller's balance for the requested year", func() {
		mgr := "mgr-1"
		users := stubUsers{"emp-1": {ID: "emp-1", Role: user.RoleEmployee, ManagerID: &mgr, ReimbursementBudget: decimal.NewFromInt(1000)}}
		requests := &stubRequests{rows: []row{
			{id: "r1", userID: "emp-1", amount: decimal.NewFromInt(400), status: reimbursement.StatusApproved, date: day(2024, time.March, 3)},
		}}
		h := ledger.NewHandler(ledger.NewService(users, requests, slog.Default()))

		req := httptest.NewRequest(http.MethodGet, "/budget?year=2024", nil)
		req = req.WithContext(errors.ContextWithUserID(req.Context(), "emp-1"))
		rec := httptest.NewRecorder()
		h.GetBudget(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"available":"600"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"remaining":"600.00"`))
	})

	It("defaults to the current year from its clock", func() {
		users := stubUsers{"emp-1": {ID: "emp-1", Role: user.RoleEmployee, ReimbursementBudget: decimal.NewFromInt(10)}}
		h := ledger.NewHandler(ledger.NewService(users, &stubRequests{}, slog.Default()))
		h.Now = func() time.Time { return day(2031, time.May, 5) }

		req := httptest.NewRequest(http.MethodGet, "/budget", nil)
		req = req.WithContext(errors.ContextWithUserID(req.Context(), "emp-1"))
		rec := httptest.NewRecorder()
		h.GetBudget(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"year":2031`))
	})

	It("rejects anonymous callers", func() {
		h := ledger.NewHandler(ledger.NewService(stubUsers{}, &stubRequests{}, slog.Default()))
		rec := httptest.NewRecorder()
		h.GetBudget(rec, httptest.NewRequest(http.MethodGet, "/budget", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
