package reporting

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	requestDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	"github.com/shopspring/decimal"
)

// PeopleQuery selects active users. Empty fields do not constrain.
type PeopleQuery struct {
	IDs       []string
	ManagerID string
	Roles     []string
}

// Store reads the snapshot a report is computed from.
type Store interface {
	ListPeople(ctx context.Context, q PeopleQuery) ([]Person, error)
	ListEntries(ctx context.Context, userIDs []string) ([]Entry, error)
	AllEntries(ctx context.Context) ([]Entry, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Defaults fills in the limits a caller leaves unset.
type Defaults struct {
	TopUsers    int
	RecentLimit int
}

type Service struct {
	users    UserReader
	store    Store
	defaults Defaults
	logger   *slog.Logger
}

func NewService(users UserReader, store Store, defaults Defaults, logger *slog.Logger) *Service {
	return &Service{users: users, store: store, defaults: defaults, logger: logger}
}

// TeamSummary is the manager landing view for the year of Now.
type TeamSummary struct {
	Year           int             `json:"year"`
	TeamSize       int             `json:"team_size"`
	PendingCount   int             `json:"pending_count"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	ApprovedCount  int             `json:"approved_count"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}

// Summary computes the report over the snapshot the viewer may see.
func (s *Service) Summary(ctx context.Context, viewerID string, f Filter) (*Report, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	people, entries, err := s.snapshot(ctx, viewer)
	if err != nil {
		s.logger.Error("failed to load report snapshot", "error", err, "viewer_id", viewer.ID)
		return nil, storeError(err)
	}

	if f.TopN <= 0 {
		f.TopN = s.defaults.TopUsers
	}
	if f.RecentLimit <= 0 {
		f.RecentLimit = s.defaults.RecentLimit
	}

	report := Compute(entries, people, f)
	s.logger.Debug("report computed",
		"viewer_id", viewer.ID,
		"people", len(people),
		"entries", len(entries),
		"matched", report.Totals.Requests)
	return report, nil
}

// ManagerSummary reports on the manager's direct reports for now's year.
func (s *Service) ManagerSummary(ctx context.Context, managerID string, now time.Time) (*TeamSummary, error) {
	manager, err := s.viewer(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if !manager.Role.CanApprove() {
		return nil, errors.ErrUnauthorizedAccess
	}

	people, entries, err := s.team(ctx, manager.ID)
	if err != nil {
		s.logger.Error("failed to load team snapshot", "error", err, "manager_id", manager.ID)
		return nil, storeError(err)
	}

	report := Compute(entries, people, Filter{Year: now.Year(), Now: now})
	summary := &TeamSummary{
		Year:           report.Year,
		TeamSize:       len(people),
		PendingAmount:  decimal.Zero,
		ApprovedCount:  report.Totals.ApprovedCount,
		ApprovedAmount: report.Totals.ApprovedAmount,
	}
	for _, b := range report.ByStatus {
		if b.Status == requestDatamodel.StatusPending {
			summary.PendingCount = b.Count
			summary.PendingAmount = b.Amount
		}
	}
	return summary, nil
}

func (s *Service) snapshot(ctx context.Context, viewer *user.User) ([]Person, []Entry, error) {
	switch viewer.Role.ReportScope() {
	case user.ScopeOrganisation:
		people, err := s.store.ListPeople(ctx, PeopleQuery{Roles: budgetRoles()})
		if err != nil {
			return nil, nil, err
		}
		entries, err := s.store.AllEntries(ctx)
		if err != nil {
			return nil, nil, err
		}
		return people, entries, nil
	case user.ScopeTeam:
		return s.team(ctx, viewer.ID)
	case user.ScopeSelf:
		people, err := s.store.ListPeople(ctx, PeopleQuery{IDs: []string{viewer.ID}})
		if err != nil {
			return nil, nil, err
		}
		entries, err := s.store.ListEntries(ctx, []string{viewer.ID})
		if err != nil {
			return nil, nil, err
		}
		return people, entries, nil
	}
	return nil, nil, errors.ErrUnauthorizedAccess
}

func (s *Service) team(ctx context.Context, managerID string) ([]Person, []Entry, error) {
	people, err := s.store.ListPeople(ctx, PeopleQuery{ManagerID: managerID})
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}
	entries, err := s.store.ListEntries(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return people, entries, nil
}

func (s *Service) viewer(ctx context.Context, id string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrUnauthorizedAccess
		}
		return nil, storeError(err)
	}
	if !u.IsActive {
		return nil, errors.ErrUserInactive
	}
	return u, nil
}

// budgetRoles are the roles that file requests and so appear in
// organisation reports.
func budgetRoles() []string {
	var out []string
	for _, r := range user.Roles() {
		if r.HasBudget() {
			out = append(out, string(r))
		}
	}
	return out
}

func storeError(err error) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}
	return errors.NewStoreUnavailableError(err)
}
