package reporting_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/reimbursement-tracker/internal/reporting"
)

func TestReporting(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reporting Suite")
}

func at(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func entry(id, userID, amount, cat, status string, day *time.Time) reporting.Entry {
	return reporting.Entry{
		ID:          id,
		UserID:      userID,
		Amount:      amount,
		Category:    cat,
		Status:      status,
		Description: "expense " + id,
		ExpenseDate: day,
		CreatedAt:   day,
	}
}

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

var _ = Describe("Compute", func() {
	people := []reporting.Person{
		{ID: "u1", Name: "Eve", Budget: "1000"},
		{ID: "u2", Name: "Bob", Budget: "500.50"},
		{ID: "u3", Name: "Cid", Budget: "n/a"},
	}

	It("returns zeroed structures for empty input", func() {
		r := reporting.Compute(nil, nil, reporting.Filter{Now: now})

		Expect(r.Year).To(Equal(2024))
		Expect(r.Totals.Requests).To(BeZero())
		Expect(r.Totals.Amount.IsZero()).To(BeTrue())
		Expect(r.Totals.BudgetAllocated.IsZero()).To(BeTrue())
		Expect(r.ByStatus).To(HaveLen(3))
		Expect(r.ByCategory).To(HaveLen(8))
		for _, c := range r.ByCategory {
			Expect(c.Count).To(BeZero())
			Expect(c.Amount.IsZero()).To(BeTrue())
		}
		Expect(r.Monthly).To(HaveLen(12))
		for i := 0; i < 4; i++ {
			Expect(r.Weekly.Approved[i].IsZero()).To(BeTrue())
			Expect(r.Weekly.Pending[i].IsZero()).To(BeTrue())
		}
		Expect(r.PerUser).To(BeEmpty())
		Expect(r.TopUsers).To(BeEmpty())
		Expect(r.Recent).To(BeEmpty())
	})

	It("counts unparseable amounts and budgets as zero", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "100", "Other", "Approved", at(2024, time.June, 1)),
			entry("b", "u1", "abc", "Other", "Approved", at(2024, time.June, 2)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now})

		Expect(r.Totals.Requests).To(Equal(2))
		Expect(r.Totals.ApprovedCount).To(Equal(2))
		Expect(r.Totals.ApprovedAmount.StringFixed(2)).To(Equal("100.00"))
		Expect(r.Totals.BudgetAllocated.StringFixed(2)).To(Equal("1500.50"))
		Expect(r.Totals.Employees).To(Equal(3))
	})

	It("skips undated entries from series but not from totals", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "40", "Other", "Pending", nil),
			entry("b", "u1", "60", "Other", "Pending", at(2024, time.March, 9)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now})

		Expect(r.Totals.Amount.StringFixed(2)).To(Equal("100.00"))
		Expect(r.Monthly[2].Expenses.StringFixed(2)).To(Equal("60.00"))
		Expect(r.Weekly.Pending[1].StringFixed(2)).To(Equal("60.00"))

		filtered := reporting.Compute(entries, people, reporting.Filter{Now: now, Year: 2024})
		Expect(filtered.Totals.Requests).To(Equal(1))
	})

	It("ANDs the structured filters", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "10", "Transportation", "Approved", at(2024, time.June, 1)),
			entry("b", "u1", "20", "Transportation", "Pending", at(2024, time.June, 1)),
			entry("c", "u1", "30", "Marketing", "Approved", at(2024, time.June, 1)),
			entry("d", "u1", "40", "Transportation", "Approved", at(2023, time.June, 1)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{
			Now: now, Year: 2024, Category: "Transportation", Status: "Approved",
		})
		Expect(r.Totals.Requests).To(Equal(1))
		Expect(r.Totals.Amount.StringFixed(2)).To(Equal("10.00"))
	})

	It("applies an inclusive date range", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "1", "Other", "Pending", at(2024, time.May, 31)),
			entry("b", "u1", "2", "Other", "Pending", at(2024, time.June, 1)),
			entry("c", "u1", "4", "Other", "Pending", at(2024, time.June, 10)),
			entry("d", "u1", "8", "Other", "Pending", at(2024, time.June, 11)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{
			Now: now, From: at(2024, time.June, 1), To: at(2024, time.June, 10),
		})
		Expect(r.Totals.Amount.StringFixed(0)).To(Equal("6"))
	})

	It("reads a day without a month as that day of the current month", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "1", "Other", "Pending", at(2024, time.June, 5)),
			entry("b", "u1", "2", "Other", "Pending", at(2024, time.May, 5)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now, Day: 5})
		Expect(r.Totals.Requests).To(Equal(1))
		Expect(r.Totals.Amount.StringFixed(0)).To(Equal("1"))

		r = reporting.Compute(entries, people, reporting.Filter{Now: now, Day: 5, Month: 5})
		Expect(r.Totals.Amount.StringFixed(0)).To(Equal("2"))
	})

	DescribeTable("free-text search",
		func(term string, want int) {
			entries := []reporting.Entry{
				entry("a", "u1", "125.75", "Office Supplies", "Approved", at(2024, time.March, 7)),
				entry("b", "u2", "9", "Marketing", "Rejected", at(2024, time.April, 12)),
			}
			r := reporting.Compute(entries, people, reporting.Filter{Now: now, Search: term})
			Expect(r.Totals.Requests).To(Equal(want))
		},
		Entry("user name, any case", "eVe", 1),
		Entry("amount", "125.7", 1),
		Entry("category", "market", 1),
		Entry("expense date as d/m/yyyy", "7/3/2024", 1),
		Entry("status", "rejected", 1),
		Entry("description", "expense", 2),
		Entry("blank", "  ", 2),
		Entry("no match", "zzz", 0),
	)

	It("buckets amounts by week of month", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "1", "Other", "Approved", at(2024, time.May, 7)),
			entry("b", "u1", "2", "Other", "Approved", at(2024, time.May, 8)),
			entry("c", "u1", "4", "Other", "Approved", at(2024, time.May, 21)),
			entry("d", "u1", "8", "Other", "Approved", at(2024, time.May, 22)),
			entry("e", "u1", "16", "Other", "Approved", at(2024, time.May, 31)),
			entry("f", "u1", "32", "Other", "Rejected", at(2024, time.May, 31)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now})

		Expect(r.Weekly.Approved[0].StringFixed(0)).To(Equal("1"))
		Expect(r.Weekly.Approved[1].StringFixed(0)).To(Equal("2"))
		Expect(r.Weekly.Approved[2].StringFixed(0)).To(Equal("4"))
		Expect(r.Weekly.Approved[3].StringFixed(0)).To(Equal("24"))
		Expect(r.Weekly.Rejected[3].StringFixed(0)).To(Equal("32"))
	})

	It("builds the monthly series for the selected year", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "10", "Other", "Approved", at(2024, time.January, 3)),
			entry("b", "u1", "5", "Other", "Pending", at(2024, time.January, 9)),
			entry("c", "u1", "99", "Other", "Approved", at(2023, time.January, 3)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now})
		Expect(r.Monthly[0].Expenses.StringFixed(0)).To(Equal("15"))
		Expect(r.Monthly[0].Approved.StringFixed(0)).To(Equal("10"))

		r = reporting.Compute(entries, people, reporting.Filter{Now: now, Year: 2023})
		Expect(r.Year).To(Equal(2023))
		Expect(r.Monthly[0].Expenses.StringFixed(0)).To(Equal("99"))
	})

	It("summarises categories and users", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "10", "Accommodation", "Approved", at(2024, time.June, 1)),
			entry("b", "u1", "5", "Accommodation", "Rejected", at(2024, time.June, 1)),
			entry("c", "u2", "7", "Marketing", "Pending", at(2024, time.June, 1)),
			entry("d", "ghost", "1", "Unknown", "Pending", at(2024, time.June, 1)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now})

		Expect(r.ByCategory[2].Category).To(Equal("Accommodation"))
		Expect(r.ByCategory[2].Count).To(Equal(2))
		Expect(r.ByCategory[2].Amount.StringFixed(0)).To(Equal("15"))
		Expect(r.ByCategory[2].ApprovedAmount.StringFixed(0)).To(Equal("10"))

		Expect(r.PerUser).To(HaveLen(3))
		Expect(r.PerUser[0].Total.StringFixed(0)).To(Equal("15"))
		Expect(r.PerUser[0].Rejected.StringFixed(0)).To(Equal("5"))
		Expect(r.PerUser[1].Pending.StringFixed(0)).To(Equal("7"))
		Expect(r.PerUser[2].Budget.IsZero()).To(BeTrue())
	})

	It("ranks top users by approved count, then amount, then name", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "10", "Other", "Approved", at(2024, time.June, 1)),
			entry("b", "u2", "50", "Other", "Approved", at(2024, time.June, 1)),
			entry("c", "u3", "10", "Other", "Approved", at(2024, time.June, 1)),
			entry("d", "u3", "10", "Other", "Approved", at(2024, time.June, 2)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now, TopN: 2})

		Expect(r.TopUsers).To(HaveLen(2))
		Expect(r.TopUsers[0].Name).To(Equal("Cid"))
		Expect(r.TopUsers[0].ApprovedCount).To(Equal(2))
		Expect(r.TopUsers[1].Name).To(Equal("Bob"))
	})

	It("lists the current month newest first", func() {
		entries := []reporting.Entry{
			entry("a", "u1", "1", "Other", "Pending", at(2024, time.June, 2)),
			entry("b", "u1", "1", "Other", "Pending", at(2024, time.June, 14)),
			entry("c", "u1", "1", "Other", "Pending", at(2024, time.May, 30)),
			entry("d", "u1", "1", "Other", "Pending", at(2023, time.June, 20)),
			entry("e", "u1", "1", "Other", "Pending", at(2024, time.June, 9)),
		}
		r := reporting.Compute(entries, people, reporting.Filter{Now: now, RecentLimit: 2})

		Expect(r.Recent).To(HaveLen(2))
		Expect(r.Recent[0].ID).To(Equal("b"))
		Expect(r.Recent[1].ID).To(Equal("e"))
	})

	It("is deterministic and leaves its inputs alone", func() {
		entries := []reporting.Entry{
			entry("a", "u2", "3", "Other", "Approved", at(2024, time.June, 2)),
			entry("b", "u1", "4", "Other", "Approved", at(2024, time.June, 3)),
		}
		first := reporting.Compute(entries, people, reporting.Filter{Now: now})
		second := reporting.Compute(entries, people, reporting.Filter{Now: now})

		Expect(second).To(Equal(first))
		Expect(entries[0].ID).To(Equal("a"))
		Expect(people[0].ID).To(Equal("u1"))
	})
})
