package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/frahmantamala/reimbursement-tracker/internal/reporting"
	"github.com/jmoiron/sqlx"
)

const entryColumns = `id, user_id, amount, category, status, description, expense_date, created_at`

// Store reads report snapshots with plain SQL. It never writes.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListPeople(ctx context.Context, q reporting.PeopleQuery) ([]reporting.Person, error) {
	where := []string{"is_active = ?"}
	args := []interface{}{true}
	if len(q.IDs) > 0 {
		where = append(where, "id IN (?)")
		args = append(args, q.IDs)
	}
	if q.ManagerID != "" {
		where = append(where, "manager_id = ?")
		args = append(args, q.ManagerID)
	}
	if len(q.Roles) > 0 {
		where = append(where, "role IN (?)")
		args = append(args, q.Roles)
	}

	query := `SELECT id, name, reimbursement_budget FROM users WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY name, id`
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	people := []reporting.Person{}
	if err := s.db.SelectContext(ctx, &people, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return people, nil
}

// ListEntries returns the requests of userIDs. No ids means no entries.
func (s *Store) ListEntries(ctx context.Context, userIDs []string) ([]reporting.Entry, error) {
	entries := []reporting.Entry{}
	if len(userIDs) == 0 {
		return entries, nil
	}

	query, args, err := sqlx.In(`SELECT `+entryColumns+` FROM reimbursement_requests
		WHERE user_id IN (?)
		ORDER BY expense_date DESC, created_at DESC`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *Store) AllEntries(ctx context.Context) ([]reporting.Entry, error) {
	entries := []reporting.Entry{}
	query := `SELECT ` + entryColumns + ` FROM reimbursement_requests ORDER BY expense_date DESC, created_at DESC`
	if err := s.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("all entries: %w", err)
	}
	return entries, nil
}

var _ reporting.Store = (*Store)(nil)
