package reimbursement

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/category"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/common/validation"
	"github.com/frahmantamala/reimbursement-tracker/internal/core/events"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository persists requests. Every *Pending method only touches rows
// still in Pending and reports whether one matched. Missing rows surface
// as errors.ErrRequestNotFound.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	ListByUser(ctx context.Context, userID string, f ListFilter) ([]*Request, error)
	ListByApprover(ctx context.Context, approverID string, q ApprovalQueue) ([]*Request, error)
	ListAll(ctx context.Context, f ListFilter) ([]*Request, error)
	UpdatePending(ctx context.Context, r *Request) (bool, error)
	DeletePending(ctx context.Context, id string) (bool, error)
	DecidePending(ctx context.Context, id string, d Decision) (bool, error)
	// BulkDecidePending applies d to all ids in one transaction, or to none.
	// It returns the ids that were missing, not Pending, or (when approver
	// is set) assigned to someone else.
	BulkDecidePending(ctx context.Context, ids []string, approver string, d Decision) ([]string, error)
	SetReceipts(ctx context.Context, id string, urls []string) error
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Ledger interface {
	AvailableBudget(ctx context.Context, userID string, year int) (decimal.Decimal, error)
	BalanceExcluding(ctx context.Context, userID string, year int, excludeID string) (*ledger.Balance, error)
}

type Service struct {
	repo   Repository
	users  UserReader
	ledger Ledger
	blobs  BlobStore
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users UserReader, budgets Ledger, blobs BlobStore, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		ledger: budgets,
		blobs:  blobs,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for timestamps and defaults.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create files a new Pending request. When the request is stored but its
// receipts cannot be, both the request and a RECEIPT_UPLOAD_FAILED error are
// returned; the request is kept.
func (s *Service) Create(ctx context.Context, userID string, dto CreateRequestDTO, files []ReceiptFile) (*Request, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("request validation failed", "error", err, "user_id", userID)
		return nil, err
	}
	expenseDate, _ := validation.ParseDate(dto.ExpenseDate)
	amount := dto.Amount.Round(2)

	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	available, err := s.ledger.AvailableBudget(ctx, owner.ID, expenseDate.Year())
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		s.logger.Info("request exceeds budget",
			"user_id", owner.ID,
			"available", available.StringFixed(2),
			"requested", amount.StringFixed(2))
		return nil, errors.NewBudgetExceededError(available, amount)
	}

	approver, ok := owner.Approver()
	if !ok {
		return nil, errors.ErrNoApproverAssigned
	}

	now := s.now().UTC()
	req := &Request{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		Approver:    approver,
		Amount:      amount,
		Category:    category.Category(dto.Category),
		ExpenseDate: expenseDate,
		Status:      StatusPending,
		Description: strings.TrimSpace(dto.Description),
		Merchant:    strings.TrimSpace(dto.Merchant),
		Notes:       strings.TrimSpace(dto.Notes),
		Receipts:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.Error("failed to create request", "error", err, "user_id", owner.ID)
		return nil, storeError(err)
	}

	s.logger.Info("request submitted",
		"request_id", req.ID,
		"user_id", req.UserID,
		"approver", req.Approver,
		"amount", req.Amount.StringFixed(2))
	s.publish(ctx, events.NewRequestSubmittedEvent(req.ID, req.UserID, req.Approver, req.Amount, string(req.Category)))

	if len(files) == 0 {
		return req, nil
	}

	urls, err := uploadAll(ctx, s.blobs, files, func(i int, f ReceiptFile) string {
		return submissionPath(req.UserID, req.ID, now, i, f.Name)
	})
	if err != nil {
		s.logger.Error("receipt upload failed", "error", err, "request_id", req.ID)
		return req, errors.NewReceiptUploadError(err)
	}
	if err := s.repo.SetReceipts(ctx, req.ID, urls); err != nil {
		s.logger.Error("failed to record receipts", "error", err, "request_id", req.ID)
		return req, errors.NewReceiptUploadError(err)
	}
	req.Receipts = urls

	return req, nil
}

// Edit rewrites a Pending request owned by actorID. The budget ceiling
// leaves the request's own current amount out.
func (s *Service) Edit(ctx context.Context, actorID, requestID string, dto UpdateRequestDTO, files []ReceiptFile) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	expenseDate, _ := validation.ParseDate(dto.ExpenseDate)
	amount := dto.Amount.Round(2)

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err)
	}
	if req.UserID != actorID {
		return nil, errors.ErrUnauthorizedAccess
	}
	if !req.IsPending() {
		return nil, errors.ErrNotEditable
	}

	balance, err := s.ledger.BalanceExcluding(ctx, req.UserID, expenseDate.Year(), req.ID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance.Available) {
		return nil, errors.NewBudgetExceededError(balance.Available, amount)
	}

	updated := *req
	updated.Amount = amount
	updated.Category = category.Category(dto.Category)
	updated.ExpenseDate = expenseDate
	updated.Description = strings.TrimSpace(dto.Description)
	updated.Merchant = strings.TrimSpace(dto.Merchant)
	updated.Notes = strings.TrimSpace(dto.Notes)
	updated.UpdatedAt = s.now().UTC()

	matched, err := s.repo.UpdatePending(ctx, &updated)
	if err != nil {
		s.logger.Error("failed to update request", "error", err, "request_id", req.ID)
		return nil, storeError(err)
	}
	if !matched {
		return nil, errors.ErrNotEditable
	}

	s.logger.Info("request edited", "request_id", req.ID, "user_id", actorID)

	if len(files) == 0 {
		return &updated, nil
	}

	urls, err := uploadAll(ctx, s.blobs, files, func(_ int, f ReceiptFile) string {
		return editPath(updated.UserID, updated.ID, f.Name)
	})
	if err != nil {
		s.logger.Error("receipt upload failed", "error", err, "request_id", req.ID)
		return &updated, errors.NewReceiptUploadError(err)
	}
	merged := mergeReceipts(updated.Receipts, urls)
	if err := s.repo.SetReceipts(ctx, updated.ID, merged); err != nil {
		return &updated, errors.NewReceiptUploadError(err)
	}
	updated.Receipts = merged

	return &updated, nil
}

// Delete removes a Pending request owned by actorID together with its
// receipts. Receipt cleanup failures are logged, not returned, since the
// request itself is already gone.
func (s *Service) Delete(ctx context.Context, actorID, requestID string) error {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return storeError(err)
	}
	if req.UserID != actorID {
		return errors.ErrUnauthorizedAccess
	}
	if !req.IsPending() {
		return errors.ErrNotDeletable
	}

	matched, err := s.repo.DeletePending(ctx, req.ID)
	if err != nil {
		s.logger.Error("failed to delete request", "error", err, "request_id", req.ID)
		return storeError(err)
	}
	if !matched {
		return errors.ErrNotDeletable
	}

	s.logger.Info("request deleted", "request_id", req.ID, "user_id", actorID)

	paths, err := s.blobs.List(ctx, req.ReceiptPrefix())
	if err == nil && len(paths) > 0 {
		err = s.blobs.Remove(ctx, paths...)
	}
	if err != nil {
		s.logger.Warn("receipt cleanup failed", "error", err, "request_id", req.ID)
	}
	return nil
}

// Decide approves or rejects a Pending request. Only the assigned approver
// or an Admin may decide; the budget is not re-checked.
func (s *Service) Decide(ctx context.Context, actorID, requestID string, dto DecisionDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err)
	}
	if !canDecide(actor, req.Approver) {
		s.logger.Warn("decision denied", "request_id", req.ID, "actor_id", actor.ID, "approver", req.Approver)
		return nil, errors.ErrUnauthorizedAccess
	}
	if !req.IsPending() {
		return nil, errors.ErrAlreadyDecided
	}

	d := s.decision(dto.Status, dto.Comments)
	matched, err := s.repo.DecidePending(ctx, req.ID, d)
	if err != nil {
		s.logger.Error("failed to record decision", "error", err, "request_id", req.ID)
		return nil, storeError(err)
	}
	if !matched {
		return nil, errors.ErrAlreadyDecided
	}

	req.Status = d.Status
	req.ApprovalComments = d.Comments
	req.ProcessedAt = &d.ProcessedAt
	req.UpdatedAt = d.ProcessedAt

	s.logger.Info("request decided", "request_id", req.ID, "status", req.Status, "actor_id", actor.ID)
	s.publish(ctx, events.NewRequestDecidedEvent(req.ID, actor.ID, string(req.Status), dto.Comments))

	return req, nil
}

// BulkDecide applies one decision to many requests atomically: if any id
// cannot be decided nothing changes and the offending ids are reported.
func (s *Service) BulkDecide(ctx context.Context, actorID string, dto BulkDecisionDTO) ([]string, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	ids := dto.UniqueIDs()
	if len(ids) == 0 {
		return nil, errors.NewValidationFieldError("ids", "ids is required", errors.ErrCodeValidationFailed)
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	scope := actor.ID
	if actor.Role == user.RoleAdmin {
		scope = ""
	}

	d := s.decision(dto.Status, dto.Comments)
	failed, err := s.repo.BulkDecidePending(ctx, ids, scope, d)
	if err != nil {
		s.logger.Error("bulk decision failed", "error", err, "actor_id", actor.ID, "count", len(ids))
		return nil, storeError(err)
	}
	if len(failed) > 0 {
		s.logger.Info("bulk decision rolled back", "actor_id", actor.ID, "failed", failed)
		return nil, errors.NewBulkDecisionFailedError(failed)
	}

	s.logger.Info("bulk decision applied", "actor_id", actor.ID, "status", d.Status, "count", len(ids))
	for _, id := range ids {
		s.publish(ctx, events.NewRequestDecidedEvent(id, actor.ID, string(d.Status), dto.Comments))
	}
	return ids, nil
}

// Get returns a request visible to actorID: its owner, its approver, or
// anyone with an organisation-wide view.
func (s *Service) Get(ctx context.Context, actorID, requestID string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err)
	}
	if req.UserID == actorID || req.Approver == actorID {
		return req, nil
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role.ReportScope() != user.ScopeOrganisation {
		return nil, errors.ErrUnauthorizedAccess
	}
	return req, nil
}

func (s *Service) ListMine(ctx context.Context, userID string, f ListFilter) ([]*Request, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	reqs, err := s.repo.ListByUser(ctx, userID, f)
	if err != nil {
		s.logger.Error("failed to list requests", "error", err, "user_id", userID)
		return nil, storeError(err)
	}
	return reqs, nil
}

func (s *Service) ListForApprover(ctx context.Context, approverID string, q ApprovalQueue) ([]*Request, error) {
	reqs, err := s.repo.ListByApprover(ctx, approverID, q)
	if err != nil {
		s.logger.Error("failed to list approvals", "error", err, "approver", approverID, "queue", q)
		return nil, storeError(err)
	}
	return reqs, nil
}

// ListAll is the organisation-wide listing. The year defaults to the
// current one.
func (s *Service) ListAll(ctx context.Context, actorID string, f ListFilter) ([]*Request, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role.ReportScope() != user.ScopeOrganisation {
		return nil, errors.ErrUnauthorizedAccess
	}
	if f.Year == 0 {
		f.Year = s.now().UTC().Year()
	}

	reqs, err := s.repo.ListAll(ctx, f)
	if err != nil {
		s.logger.Error("failed to list all requests", "error", err)
		return nil, storeError(err)
	}
	return reqs, nil
}

// Receipts lists the files stored under the request's folder.
func (s *Service) Receipts(ctx context.Context, actorID, requestID string) ([]Receipt, error) {
	req, err := s.Get(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}
	paths, err := s.blobs.List(ctx, req.ReceiptPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]Receipt, len(paths))
	for i, p := range paths {
		out[i] = Receipt{Name: path.Base(p), Path: p, URL: s.blobs.URL(p)}
	}
	return out, nil
}

// AttachReceipts adds files to a Pending request, the retry path after a
// failed upload at creation.
func (s *Service) AttachReceipts(ctx context.Context, actorID, requestID string, files []ReceiptFile) (*Request, error) {
	req, err := s.ownedPending(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return req, nil
	}

	now := s.now().UTC()
	urls, err := uploadAll(ctx, s.blobs, files, func(i int, f ReceiptFile) string {
		return submissionPath(req.UserID, req.ID, now, i, f.Name)
	})
	if err != nil {
		s.logger.Error("receipt upload failed", "error", err, "request_id", req.ID)
		return nil, errors.NewReceiptUploadError(err)
	}
	merged := mergeReceipts(req.Receipts, urls)
	if err := s.repo.SetReceipts(ctx, req.ID, merged); err != nil {
		return nil, storeError(err)
	}
	req.Receipts = merged
	return req, nil
}

// RemoveReceipt deletes one file from a Pending request.
func (s *Service) RemoveReceipt(ctx context.Context, actorID, requestID, name string) (*Request, error) {
	req, err := s.ownedPending(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	p := req.ReceiptPrefix() + "/" + SanitizeFilename(name)
	if err := s.blobs.Remove(ctx, p); err != nil {
		return nil, err
	}

	url := s.blobs.URL(p)
	kept := make([]string, 0, len(req.Receipts))
	for _, u := range req.Receipts {
		if u != url {
			kept = append(kept, u)
		}
	}
	if err := s.repo.SetReceipts(ctx, req.ID, kept); err != nil {
		return nil, storeError(err)
	}
	req.Receipts = kept
	return req, nil
}

func (s *Service) ownedPending(ctx context.Context, actorID, requestID string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError(err)
	}
	if req.UserID != actorID {
		return nil, errors.ErrUnauthorizedAccess
	}
	if !req.IsPending() {
		return nil, errors.ErrNotEditable
	}
	return req, nil
}

// actor loads the acting user fresh from the store; roles are never taken
// from the session.
func (s *Service) actor(ctx context.Context, actorID string) (*user.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrUnauthorizedAccess
		}
		return nil, storeError(err)
	}
	if !actor.IsActive {
		return nil, errors.ErrUserInactive
	}
	return actor, nil
}

func (s *Service) decision(status, comments string) Decision {
	d := Decision{Status: Status(status), ProcessedAt: s.now().UTC()}
	if c := strings.TrimSpace(comments); c != "" {
		d.Comments = &c
	}
	return d
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "error", err, "event_type", e.EventType())
	}
}

func canDecide(actor *user.User, approver string) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleManager, user.RoleFinance, user.RoleEmployee:
		return approver == actor.ID
	}
	return false
}

func storeError(err error) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}
	return errors.NewStoreUnavailableError(err)
}
