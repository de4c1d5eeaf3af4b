package reporting_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/reporting"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
)

type stubUsers map[string]*user.User

func (s stubUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return u, nil
}

// fakeStore answers from fixed people and entries; managers maps a manager
// id to the ids of their reports.
type fakeStore struct {
	people   []reporting.Person
	roles    map[string]string
	managers map[string][]string
	entries  []reporting.Entry
	err      error
}

func (f *fakeStore) ListPeople(_ context.Context, q reporting.PeopleQuery) ([]reporting.Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	keep := func(p reporting.Person) bool {
		if len(q.IDs) > 0 && !contains(q.IDs, p.ID) {
			return false
		}
		if q.ManagerID != "" && !contains(f.managers[q.ManagerID], p.ID) {
			return false
		}
		if len(q.Roles) > 0 && !contains(q.Roles, f.roles[p.ID]) {
			return false
		}
		return true
	}
	out := []reporting.Person{}
	for _, p := range f.people {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEntries(_ context.Context, userIDs []string) ([]reporting.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []reporting.Entry{}
	for _, e := range f.entries {
		if contains(userIDs, e.UserID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) AllEntries(_ context.Context) ([]reporting.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]reporting.Entry{}, f.entries...), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var _ = Describe("Service", func() {
	var (
		store *fakeStore
		users stubUsers
		svc   *reporting.Service
		ctx   context.Context
	)

	BeforeEach(func() {
		mgr := "mgr"
		users = stubUsers{
			"admin": {ID: "admin", Role: user.RoleAdmin, IsActive: true},
			"fin":   {ID: "fin", Role: user.RoleFinance, IsActive: true},
			"mgr":   {ID: "mgr", Role: user.RoleManager, IsActive: true},
			"e1":    {ID: "e1", Role: user.RoleEmployee, ManagerID: &mgr, IsActive: true},
			"e2":    {ID: "e2", Role: user.RoleEmployee, IsActive: true},
			"old":   {ID: "old", Role: user.RoleEmployee, IsActive: false},
		}
		store = &fakeStore{
			people: []reporting.Person{
				{ID: "admin", Name: "Ada", Budget: "0"},
				{ID: "mgr", Name: "Max", Budget: "2000"},
				{ID: "e1", Name: "Eve", Budget: "1000"},
				{ID: "e2", Name: "Emil", Budget: "800"},
			},
			roles:    map[string]string{"admin": "Admin", "mgr": "Manager", "e1": "Employee", "e2": "Employee"},
			managers: map[string][]string{"mgr": {"e1"}},
			entries: []reporting.Entry{
				entry("r1", "e1", "100", "Other", "Approved", at(2024, time.June, 1)),
				entry("r2", "e1", "40", "Other", "Pending", at(2024, time.June, 3)),
				entry("r3", "e2", "70", "Other", "Pending", at(2024, time.June, 4)),
				entry("r4", "mgr", "300", "Other", "Approved", at(2024, time.May, 4)),
				entry("r5", "e1", "900", "Other", "Pending", at(2023, time.May, 4)),
			},
		}
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = reporting.NewService(users, store, reporting.Defaults{TopUsers: 1, RecentLimit: 5}, lg)
		ctx = context.Background()
	})

	DescribeTable("scopes the snapshot by role",
		func(viewer string, employees, requests int) {
			r, err := svc.Summary(ctx, viewer, reporting.Filter{Now: now})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Totals.Employees).To(Equal(employees))
			Expect(r.Totals.Requests).To(Equal(requests))
		},
		Entry("admin sees every budget holder", "admin", 3, 5),
		Entry("finance sees every budget holder", "fin", 3, 5),
		Entry("manager sees direct reports", "mgr", 1, 3),
		Entry("employee sees self", "e2", 1, 1),
	)

	It("applies the configured limits", func() {
		r, err := svc.Summary(ctx, "admin", reporting.Filter{Now: now})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.TopUsers).To(HaveLen(1))
		Expect(r.TopUsers[0].Name).To(Equal("Max"))
	})

	It("refuses inactive and unknown viewers", func() {
		_, err := svc.Summary(ctx, "old", reporting.Filter{Now: now})
		Expect(errors.Is(err, errors.ErrUserInactive)).To(BeTrue())

		_, err = svc.Summary(ctx, "ghost", reporting.Filter{Now: now})
		Expect(errors.Is(err, errors.ErrUnauthorizedAccess)).To(BeTrue())
	})

	It("surfaces store failures as unavailable", func() {
		store.err = fmt.Errorf("connection refused")
		_, err := svc.Summary(ctx, "admin", reporting.Filter{Now: now})
		Expect(errors.Is(err, errors.ErrStoreUnavailable)).To(BeTrue())
	})

	It("summarises a manager's team for the current year", func() {
		s, err := svc.ManagerSummary(ctx, "mgr", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Year).To(Equal(2024))
		Expect(s.TeamSize).To(Equal(1))
		Expect(s.PendingCount).To(Equal(1))
		Expect(s.PendingAmount.Equal(decimal.NewFromInt(40))).To(BeTrue())
		Expect(s.ApprovedAmount.Equal(decimal.NewFromInt(100))).To(BeTrue())
	})

	It("keeps the manager summary from employees", func() {
		_, err := svc.ManagerSummary(ctx, "e1", now)
		Expect(errors.Is(err, errors.ErrUnauthorizedAccess)).To(BeTrue())
	})

	Describe("Handler", func() {
		var h *reporting.Handler

		BeforeEach(func() {
			h = reporting.NewHandler(svc)
			h.Now = func() time.Time { return now }
		})

		get := func(target, viewer string, fn http.HandlerFunc) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req = req.WithContext(errors.ContextWithUserID(req.Context(), viewer))
			rec := httptest.NewRecorder()
			fn(rec, req)
			return rec
		}

		It("computes a filtered summary", func() {
			rec := get("/reports/summary?status=Pending&year=2024", "admin", h.GetSummary)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body struct {
				Totals struct {
					Requests int    `json:"requests"`
					Amount   string `json:"amount"`
				} `json:"totals"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Totals.Requests).To(Equal(2))
			Expect(body.Totals.Amount).To(Equal("110"))
		})

		It("rejects malformed dates", func() {
			rec := get("/reports/summary?from=01-06-2024", "admin", h.GetSummary)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an out-of-range month", func() {
			rec := get("/reports/summary?month=13", "admin", h.GetSummary)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("serves the manager summary", func() {
			rec := get("/reports/manager-summary", "mgr", h.GetManagerSummary)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"team_size":1`))
		})
	})
})
