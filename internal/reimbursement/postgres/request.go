package postgres

import (
	"context"
	stderrors "errors"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	requestDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/reimbursement"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestRepository implements reimbursement.Repository and
// ledger.ConsumptionReader using GORM
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *reimbursement.Request) error {
	m := reimbursement.ToDataModel(req)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	req.CreatedAt = m.CreatedAt
	req.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*reimbursement.Request, error) {
	var m requestDatamodel.Request
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRequestNotFound
		}
		return nil, err
	}
	return reimbursement.FromDataModel(&m), nil
}

// ListByUser returns a user's requests, newest expense first.
func (r *RequestRepository) ListByUser(ctx context.Context, userID string, f reimbursement.ListFilter) ([]*reimbursement.Request, error) {
	q := r.filtered(ctx, f).Where("user_id = ?", userID)

	var models []*requestDatamodel.Request
	if err := q.Order("expense_date DESC").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return reimbursement.FromDataModelSlice(models), nil
}

// ListByApprover returns one side of the approver's inbox: pending requests
// by expense date, or decided ones by decision time.
func (r *RequestRepository) ListByApprover(ctx context.Context, approverID string, queue reimbursement.ApprovalQueue) ([]*reimbursement.Request, error) {
	q := r.db.WithContext(ctx).Where("approver = ?", approverID)
	switch queue {
	case reimbursement.QueueDecided:
		q = q.Where("status IN ?", []string{requestDatamodel.StatusApproved, requestDatamodel.StatusRejected}).
			Order("processed_at DESC")
	case reimbursement.QueuePending:
		q = q.Where("status = ?", requestDatamodel.StatusPending).
			Order("expense_date DESC")
	}

	var models []*requestDatamodel.Request
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return reimbursement.FromDataModelSlice(models), nil
}

func (r *RequestRepository) ListAll(ctx context.Context, f reimbursement.ListFilter) ([]*reimbursement.Request, error) {
	var models []*requestDatamodel.Request
	if err := r.filtered(ctx, f).Order("expense_date DESC").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return reimbursement.FromDataModelSlice(models), nil
}

func (r *RequestRepository) filtered(ctx context.Context, f reimbursement.ListFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&requestDatamodel.Request{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Year != 0 {
		from, until := ledger.YearRange(f.Year)
		q = q.Where("expense_date >= ? AND expense_date < ?", from, until)
	}
	return q
}

// UpdatePending overwrites the editable fields only while the row is still
// Pending.
func (r *RequestRepository) UpdatePending(ctx context.Context, req *reimbursement.Request) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("id = ? AND status = ?", req.ID, requestDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"amount":       req.Amount,
			"category":     string(req.Category),
			"expense_date": req.ExpenseDate,
			"description":  req.Description,
			"merchant":     req.Merchant,
			"notes":        req.Notes,
			"updated_at":   req.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, requestDatamodel.StatusPending).
		Delete(&requestDatamodel.Request{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RequestRepository) DecidePending(ctx context.Context, id string, d reimbursement.Decision) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("id = ? AND status = ?", id, requestDatamodel.StatusPending).
		Updates(decisionColumns(d))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// BulkDecidePending checks every id inside the transaction before writing,
// then applies one conditional update. If the update touches fewer rows
// than expected (a concurrent decision slipped in) the transaction is
// rolled back and the ids the update could not claim are reported.
func (r *RequestRepository) BulkDecidePending(ctx context.Context, ids []string, approver string, d reimbursement.Decision) ([]string, error) {
	var failed []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eligible := func() *gorm.DB {
			q := tx.Model(&requestDatamodel.Request{}).
				Where("id IN ? AND status = ?", ids, requestDatamodel.StatusPending)
			if approver != "" {
				q = q.Where("approver = ?", approver)
			}
			return q
		}

		var matched []string
		if err := eligible().Pluck("id", &matched).Error; err != nil {
			return err
		}
		if failed = missing(ids, matched); len(failed) > 0 {
			return errBulkRollback
		}

		res := eligible().Updates(decisionColumns(d))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == int64(len(ids)) {
			return nil
		}

		var claimed []string
		err := tx.Model(&requestDatamodel.Request{}).
			Where("id IN ? AND status = ? AND processed_at = ?", ids, string(d.Status), d.ProcessedAt).
			Pluck("id", &claimed).Error
		if err != nil {
			return err
		}
		failed = missing(ids, claimed)
		return errBulkRollback
	})

	if stderrors.Is(err, errBulkRollback) {
		return failed, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

var errBulkRollback = stderrors.New("bulk decision rolled back")

func (r *RequestRepository) SetReceipts(ctx context.Context, id string, urls []string) error {
	res := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"receipt_url": reimbursement.JoinReceipts(urls),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrRequestNotFound
	}
	return nil
}

// ListAmounts returns the amounts counting against a budget.
func (r *RequestRepository) ListAmounts(ctx context.Context, q ledger.Query) ([]decimal.Decimal, error) {
	db := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("user_id = ? AND status IN ?", q.UserID, q.Statuses).
		Where("expense_date >= ? AND expense_date < ?", q.From, q.Until)
	if q.ExcludeID != "" {
		db = db.Where("id <> ?", q.ExcludeID)
	}

	var amounts []decimal.Decimal
	if err := db.Pluck("amount", &amounts).Error; err != nil {
		return nil, err
	}
	return amounts, nil
}

func decisionColumns(d reimbursement.Decision) map[string]interface{} {
	return map[string]interface{}{
		"status":            string(d.Status),
		"approval_comments": d.Comments,
		"processed_at":      d.ProcessedAt,
		"updated_at":        d.ProcessedAt,
	}
}

// missing returns the ids absent from found, in input order.
func missing(ids, found []string) []string {
	set := make(map[string]struct{}, len(found))
	for _, id := range found {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
