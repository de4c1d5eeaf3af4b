package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	requestDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/shopspring/decimal"
)

// Entry is one request as read for reporting. Amount is kept raw so that a
// malformed stored value degrades to zero instead of failing the report.
type Entry struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Amount      string     `json:"amount" db:"amount"`
	Category    string     `json:"category" db:"category"`
	Status      string     `json:"status" db:"status"`
	Description string     `json:"description" db:"description"`
	ExpenseDate *time.Time `json:"expense_date" db:"expense_date"`
	CreatedAt   *time.Time `json:"created_at" db:"created_at"`
}

type Person struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Budget string `json:"budget" db:"reimbursement_budget"`
}

// Filter narrows the entries before aggregation. Every set field must match;
// Search then matches any of the searchable fields. Now stands in for the
// current date wherever one is needed.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Year     int
	Month    int
	Day      int
	Category string
	Status   string
	Search   string

	Now         time.Time
	TopN        int
	RecentLimit int
}

func (f Filter) hasDateFilter() bool {
	return f.From != nil || f.To != nil || f.Year != 0 || f.Month != 0 || f.Day != 0
}

type Totals struct {
	Employees       int             `json:"employees"`
	Requests        int             `json:"requests"`
	Amount          decimal.Decimal `json:"amount"`
	ApprovedAmount  decimal.Decimal `json:"approved_amount"`
	PendingCount    int             `json:"pending_count"`
	ApprovedCount   int             `json:"approved_count"`
	RejectedCount   int             `json:"rejected_count"`
	BudgetAllocated decimal.Decimal `json:"budget_allocated"`
}

type StatusBucket struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type CategoryBucket struct {
	Category       string          `json:"category"`
	Count          int             `json:"count"`
	Amount         decimal.Decimal `json:"amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}

type MonthPoint struct {
	Month    int             `json:"month"`
	Expenses decimal.Decimal `json:"expenses"`
	Approved decimal.Decimal `json:"approved"`
}

// WeekSeries holds amounts per week of the month. Days 22 onwards all fall
// in the fourth week.
type WeekSeries struct {
	Approved [4]decimal.Decimal `json:"approved"`
	Rejected [4]decimal.Decimal `json:"rejected"`
	Pending  [4]decimal.Decimal `json:"pending"`
}

type UserBreakdown struct {
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	Budget   decimal.Decimal `json:"budget"`
	Requests int             `json:"requests"`
	Total    decimal.Decimal `json:"total"`
	Approved decimal.Decimal `json:"approved"`
	Pending  decimal.Decimal `json:"pending"`
	Rejected decimal.Decimal `json:"rejected"`
}

type UserRank struct {
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	ApprovedCount  int             `json:"approved_count"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}

type Report struct {
	Year       int              `json:"year"`
	Totals     Totals           `json:"totals"`
	ByStatus   []StatusBucket   `json:"by_status"`
	ByCategory []CategoryBucket `json:"by_category"`
	Monthly    []MonthPoint     `json:"monthly"`
	Weekly     WeekSeries       `json:"weekly"`
	PerUser    []UserBreakdown  `json:"per_user"`
	TopUsers   []UserRank       `json:"top_users"`
	Recent     []Entry          `json:"recent"`
}

var reportStatuses = []string{
	requestDatamodel.StatusApproved,
	requestDatamodel.StatusRejected,
	requestDatamodel.StatusPending,
}

// Compute aggregates entries and people under filter. It never mutates its
// inputs and returns zeroed structures for empty input.
func Compute(entries []Entry, people []Person, filter Filter) *Report {
	names := make(map[string]string, len(people))
	for _, p := range people {
		names[p.ID] = p.Name
	}

	matched := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if filter.matches(e) && filter.matchesSearch(e, names[e.UserID]) {
			matched = append(matched, e)
		}
	}

	year := filter.Year
	if year == 0 {
		year = filter.Now.Year()
	}

	return &Report{
		Year:       year,
		Totals:     totals(matched, people),
		ByStatus:   byStatus(matched),
		ByCategory: byCategory(matched),
		Monthly:    monthly(matched, year),
		Weekly:     weekly(matched),
		PerUser:    perUser(matched, people),
		TopUsers:   topUsers(matched, people, filter.TopN),
		Recent:     recent(matched, filter.Now, filter.RecentLimit),
	}
}

func (f Filter) matches(e Entry) bool {
	if f.hasDateFilter() {
		if e.ExpenseDate == nil {
			return false
		}
		d := e.ExpenseDate.UTC()
		if f.From != nil && d.Before(dayStart(*f.From)) {
			return false
		}
		if f.To != nil && !d.Before(dayStart(*f.To).AddDate(0, 0, 1)) {
			return false
		}
		if f.Year != 0 && d.Year() != f.Year {
			return false
		}
		switch {
		case f.Month != 0:
			if int(d.Month()) != f.Month {
				return false
			}
		case f.Day != 0:
			// a day without a month means that day of the current month
			if d.Month() != f.Now.Month() {
				return false
			}
		}
		if f.Day != 0 && d.Day() != f.Day {
			return false
		}
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

func (f Filter) matchesSearch(e Entry, userName string) bool {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	fields := []string{
		userName,
		e.Description,
		e.Amount,
		e.Category,
		displayDate(e.ExpenseDate),
		displayDate(e.CreatedAt),
		e.Status,
	}
	for _, field := range fields {
		if field != "" && strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func totals(entries []Entry, people []Person) Totals {
	t := Totals{
		Employees:       len(people),
		Requests:        len(entries),
		Amount:          decimal.Zero,
		ApprovedAmount:  decimal.Zero,
		BudgetAllocated: decimal.Zero,
	}
	for _, p := range people {
		t.BudgetAllocated = t.BudgetAllocated.Add(parseAmount(p.Budget))
	}
	for _, e := range entries {
		amount := parseAmount(e.Amount)
		t.Amount = t.Amount.Add(amount)
		switch e.Status {
		case requestDatamodel.StatusApproved:
			t.ApprovedCount++
			t.ApprovedAmount = t.ApprovedAmount.Add(amount)
		case requestDatamodel.StatusPending:
			t.PendingCount++
		case requestDatamodel.StatusRejected:
			t.RejectedCount++
		}
	}
	return t
}

func byStatus(entries []Entry) []StatusBucket {
	out := make([]StatusBucket, len(reportStatuses))
	index := make(map[string]int, len(reportStatuses))
	for i, s := range reportStatuses {
		out[i] = StatusBucket{Status: s, Amount: decimal.Zero}
		index[s] = i
	}
	for _, e := range entries {
		if i, ok := index[e.Status]; ok {
			out[i].Count++
			out[i].Amount = out[i].Amount.Add(parseAmount(e.Amount))
		}
	}
	return out
}

func byCategory(entries []Entry) []CategoryBucket {
	cats := category.Names()
	out := make([]CategoryBucket, len(cats))
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		out[i] = CategoryBucket{Category: c, Amount: decimal.Zero, ApprovedAmount: decimal.Zero}
		index[c] = i
	}
	for _, e := range entries {
		i, ok := index[e.Category]
		if !ok {
			continue
		}
		amount := parseAmount(e.Amount)
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(amount)
		if e.Status == requestDatamodel.StatusApproved {
			out[i].ApprovedAmount = out[i].ApprovedAmount.Add(amount)
		}
	}
	return out
}

func monthly(entries []Entry, year int) []MonthPoint {
	out := make([]MonthPoint, 12)
	for i := range out {
		out[i] = MonthPoint{Month: i + 1, Expenses: decimal.Zero, Approved: decimal.Zero}
	}
	for _, e := range entries {
		if e.ExpenseDate == nil {
			continue
		}
		d := e.ExpenseDate.UTC()
		if d.Year() != year {
			continue
		}
		amount := parseAmount(e.Amount)
		p := &out[int(d.Month())-1]
		p.Expenses = p.Expenses.Add(amount)
		if e.Status == requestDatamodel.StatusApproved {
			p.Approved = p.Approved.Add(amount)
		}
	}
	return out
}

func weekly(entries []Entry) WeekSeries {
	var w WeekSeries
	for i := 0; i < 4; i++ {
		w.Approved[i], w.Rejected[i], w.Pending[i] = decimal.Zero, decimal.Zero, decimal.Zero
	}
	for _, e := range entries {
		if e.ExpenseDate == nil {
			continue
		}
		i := weekOfMonth(e.ExpenseDate.UTC().Day())
		amount := parseAmount(e.Amount)
		switch e.Status {
		case requestDatamodel.StatusApproved:
			w.Approved[i] = w.Approved[i].Add(amount)
		case requestDatamodel.StatusRejected:
			w.Rejected[i] = w.Rejected[i].Add(amount)
		case requestDatamodel.StatusPending:
			w.Pending[i] = w.Pending[i].Add(amount)
		}
	}
	return w
}

func weekOfMonth(day int) int {
	switch {
	case day <= 7:
		return 0
	case day <= 14:
		return 1
	case day <= 21:
		return 2
	default:
		return 3
	}
}

func perUser(entries []Entry, people []Person) []UserBreakdown {
	out := make([]UserBreakdown, len(people))
	index := make(map[string]int, len(people))
	for i, p := range people {
		out[i] = UserBreakdown{
			UserID:   p.ID,
			Name:     p.Name,
			Budget:   parseAmount(p.Budget),
			Total:    decimal.Zero,
			Approved: decimal.Zero,
			Pending:  decimal.Zero,
			Rejected: decimal.Zero,
		}
		index[p.ID] = i
	}
	for _, e := range entries {
		i, ok := index[e.UserID]
		if !ok {
			continue
		}
		amount := parseAmount(e.Amount)
		b := &out[i]
		b.Requests++
		b.Total = b.Total.Add(amount)
		switch e.Status {
		case requestDatamodel.StatusApproved:
			b.Approved = b.Approved.Add(amount)
		case requestDatamodel.StatusPending:
			b.Pending = b.Pending.Add(amount)
		case requestDatamodel.StatusRejected:
			b.Rejected = b.Rejected.Add(amount)
		}
	}
	return out
}

// topUsers ranks people by approved request count, then approved amount,
// then name. A non-positive limit keeps everyone.
func topUsers(entries []Entry, people []Person, limit int) []UserRank {
	out := make([]UserRank, len(people))
	index := make(map[string]int, len(people))
	for i, p := range people {
		out[i] = UserRank{UserID: p.ID, Name: p.Name, ApprovedAmount: decimal.Zero}
		index[p.ID] = i
	}
	for _, e := range entries {
		if e.Status != requestDatamodel.StatusApproved {
			continue
		}
		if i, ok := index[e.UserID]; ok {
			out[i].ApprovedCount++
			out[i].ApprovedAmount = out[i].ApprovedAmount.Add(parseAmount(e.Amount))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ApprovedCount != out[j].ApprovedCount {
			return out[i].ApprovedCount > out[j].ApprovedCount
		}
		if c := out[i].ApprovedAmount.Cmp(out[j].ApprovedAmount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// recent returns the entries dated in now's month, newest first.
func recent(entries []Entry, now time.Time, limit int) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.ExpenseDate == nil {
			continue
		}
		d := e.ExpenseDate.UTC()
		if d.Year() == now.Year() && d.Month() == now.Month() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := *out[i].ExpenseDate, *out[j].ExpenseDate
		if !a.Equal(b) {
			return a.After(b)
		}
		return timeOrZero(out[i].CreatedAt).After(timeOrZero(out[j].CreatedAt))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// displayDate renders d as d/m/yyyy, the format users type into search.
func displayDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	d := t.UTC()
	return fmt.Sprintf("%d/%d/%d", d.Day(), int(d.Month()), d.Year())
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
