package reimbursement_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/events"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
)

// mockRequestRepository keeps requests in memory and honours the Pending
// conditions the SQL repository applies.
type mockRequestRepository struct {
	requests    map[string]*reimbursement.Request
	createError error
	updateError error
}

func newMockRequestRepository() *mockRequestRepository {
	return &mockRequestRepository{requests: make(map[string]*reimbursement.Request)}
}

func (m *mockRequestRepository) put(r *reimbursement.Request) {
	cp := *r
	m.requests[r.ID] = &cp
}

func (m *mockRequestRepository) Create(_ context.Context, r *reimbursement.Request) error {
	if m.createError != nil {
		return m.createError
	}
	m.put(r)
	return nil
}

func (m *mockRequestRepository) GetByID(_ context.Context, id string) (*reimbursement.Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, errors.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepository) sorted(keep func(*reimbursement.Request) bool) []*reimbursement.Request {
	out := make([]*reimbursement.Request, 0)
	for _, r := range m.requests {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpenseDate.After(out[j].ExpenseDate) })
	return out
}

func matchesFilter(r *reimbursement.Request, f reimbursement.ListFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Year != 0 && r.ExpenseDate.Year() != f.Year {
		return false
	}
	return true
}

func (m *mockRequestRepository) ListByUser(_ context.Context, userID string, f reimbursement.ListFilter) ([]*reimbursement.Request, error) {
	return m.sorted(func(r *reimbursement.Request) bool { return r.UserID == userID && matchesFilter(r, f) }), nil
}

func (m *mockRequestRepository) ListByApprover(_ context.Context, approverID string, q reimbursement.ApprovalQueue) ([]*reimbursement.Request, error) {
	return m.sorted(func(r *reimbursement.Request) bool {
		if r.Approver != approverID {
			return false
		}
		if q == reimbursement.QueueDecided {
			return r.Status != reimbursement.StatusPending
		}
		return r.Status == reimbursement.StatusPending
	}), nil
}

func (m *mockRequestRepository) ListAll(_ context.Context, f reimbursement.ListFilter) ([]*reimbursement.Request, error) {
	return m.sorted(func(r *reimbursement.Request) bool { return matchesFilter(r, f) }), nil
}

func (m *mockRequestRepository) UpdatePending(_ context.Context, r *reimbursement.Request) (bool, error) {
	if m.updateError != nil {
		return false, m.updateError
	}
	cur, ok := m.requests[r.ID]
	if !ok || cur.Status != reimbursement.StatusPending {
		return false, nil
	}
	m.put(r)
	return true, nil
}

func (m *mockRequestRepository) DeletePending(_ context.Context, id string) (bool, error) {
	cur, ok := m.requests[id]
	if !ok || cur.Status != reimbursement.StatusPending {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

func (m *mockRequestRepository) DecidePending(_ context.Context, id string, d reimbursement.Decision) (bool, error) {
	cur, ok := m.requests[id]
	if !ok || cur.Status != reimbursement.StatusPending {
		return false, nil
	}
	apply(cur, d)
	return true, nil
}

func (m *mockRequestRepository) BulkDecidePending(_ context.Context, ids []string, approver string, d reimbursement.Decision) ([]string, error) {
	var failed []string
	for _, id := range ids {
		cur, ok := m.requests[id]
		if !ok || cur.Status != reimbursement.StatusPending || (approver != "" && cur.Approver != approver) {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return failed, nil
	}
	for _, id := range ids {
		apply(m.requests[id], d)
	}
	return nil, nil
}

func (m *mockRequestRepository) SetReceipts(_ context.Context, id string, urls []string) error {
	cur, ok := m.requests[id]
	if !ok {
		return errors.ErrRequestNotFound
	}
	cur.Receipts = append([]string{}, urls...)
	return nil
}

func (m *mockRequestRepository) ListAmounts(_ context.Context, q ledger.Query) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, r := range m.requests {
		if r.UserID != q.UserID || r.ID == q.ExcludeID {
			continue
		}
		if r.ExpenseDate.Before(q.From) || !r.ExpenseDate.Before(q.Until) {
			continue
		}
		for _, s := range q.Statuses {
			if string(r.Status) == s {
				out = append(out, r.Amount)
			}
		}
	}
	return out, nil
}

func apply(r *reimbursement.Request, d reimbursement.Decision) {
	at := d.ProcessedAt
	r.Status = d.Status
	r.ApprovalComments = d.Comments
	r.ProcessedAt = &at
	r.UpdatedAt = at
}

type mockUsers map[string]*user.User

func (m mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// memoryBlobs is an in-memory blob store; failOn makes uploads of matching
// file names fail.
type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: make(map[string]string)}
}

func (b *memoryBlobs) Upload(_ context.Context, p string, r io.Reader, _ string) (string, error) {
	if b.failOn != "" && strings.HasSuffix(p, b.failOn) {
		return "", errors.NewBlobStoreUnavailableError(fmt.Errorf("disk full"))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[p] = string(data)
	return b.URL(p), nil
}

func (b *memoryBlobs) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0)
	for p := range b.objects {
		if strings.HasPrefix(p, prefix+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *memoryBlobs) Remove(_ context.Context, paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range paths {
		delete(b.objects, p)
	}
	return nil
}

func (b *memoryBlobs) URL(p string) string {
	return "http://files.test/" + p
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
