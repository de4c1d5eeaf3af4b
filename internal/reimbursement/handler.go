package reimbursement

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/transport"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
)

type ServiceAPI interface {
	Create(ctx context.Context, userID string, dto CreateRequestDTO, files []ReceiptFile) (*Request, error)
	Edit(ctx context.Context, actorID, requestID string, dto UpdateRequestDTO, files []ReceiptFile) (*Request, error)
	Delete(ctx context.Context, actorID, requestID string) error
	Decide(ctx context.Context, actorID, requestID string, dto DecisionDTO) (*Request, error)
	BulkDecide(ctx context.Context, actorID string, dto BulkDecisionDTO) ([]string, error)
	Get(ctx context.Context, actorID, requestID string) (*Request, error)
	ListMine(ctx context.Context, userID string, f ListFilter) ([]*Request, error)
	ListForApprover(ctx context.Context, approverID string, q ApprovalQueue) ([]*Request, error)
	ListAll(ctx context.Context, actorID string, f ListFilter) ([]*Request, error)
	Receipts(ctx context.Context, actorID, requestID string) ([]Receipt, error)
	AttachReceipts(ctx context.Context, actorID, requestID string, files []ReceiptFile) (*Request, error)
	RemoveReceipt(ctx context.Context, actorID, requestID, name string) (*Request, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(svc ServiceAPI, maxUploadBytes int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
	}
}

// mutationResponse wraps a request that was saved, plus the receipt error
// when the attachments could not be.
type mutationResponse struct {
	Request      *Request         `json:"request"`
	ReceiptError *errors.AppError `json:"receipt_error,omitempty"`
}

// CreateRequest handles POST /requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "CreateRequest")
	if !ok {
		return
	}

	var dto CreateRequestDTO
	files, cleanup, err := h.decodeClaim(w, r, &dto)
	if err != nil {
		h.Logger.Error("CreateRequest: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	defer cleanup()

	req, err := h.Service.Create(r.Context(), userID, dto, files)
	if h.partial(w, http.StatusCreated, req, err, "CreateRequest") {
		return
	}
	if err != nil {
		h.Logger.Error("CreateRequest: service error", "error", err, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateRequest: request created",
		"request_id", req.ID,
		"user_id", userID,
		"amount", req.Amount.StringFixed(2))
	h.WriteJSON(w, http.StatusCreated, mutationResponse{Request: req})
}

// UpdateRequest handles PUT /requests/{id}
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "UpdateRequest")
	if !ok {
		return
	}

	var dto UpdateRequestDTO
	files, cleanup, err := h.decodeClaim(w, r, &dto)
	if err != nil {
		h.Logger.Error("UpdateRequest: invalid request body", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	defer cleanup()

	id := chi.URLParam(r, "id")
	req, err := h.Service.Edit(r.Context(), userID, id, dto, files)
	if h.partial(w, http.StatusOK, req, err, "UpdateRequest") {
		return
	}
	if err != nil {
		h.Logger.Error("UpdateRequest: service error", "error", err, "request_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, mutationResponse{Request: req})
}

// DeleteRequest handles DELETE /requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "DeleteRequest")
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), userID, id); err != nil {
		h.Logger.Error("DeleteRequest: service error", "error", err, "request_id", id)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRequest handles GET /requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "GetRequest")
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// ListMyRequests handles GET /requests?status=&year=
func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "ListMyRequests")
	if !ok {
		return
	}

	reqs, err := h.Service.ListMine(r.Context(), userID, listFilter(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

// ListAllRequests handles GET /admin/requests?status=&year=
func (h *Handler) ListAllRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "ListAllRequests")
	if !ok {
		return
	}

	reqs, err := h.Service.ListAll(r.Context(), userID, listFilter(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

// ListApprovals handles GET /approvals?queue=pending|decided
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "ListApprovals")
	if !ok {
		return
	}

	queue, err := ParseQueue(r.URL.Query().Get("queue"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	reqs, err := h.Service.ListForApprover(r.Context(), userID, queue)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"queue": queue, "requests": reqs})
}

// DecideRequest handles PATCH /approvals/{id}
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "DecideRequest")
	if !ok {
		return
	}

	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("DecideRequest: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	req, err := h.Service.Decide(r.Context(), userID, id, dto)
	if err != nil {
		h.Logger.Error("DecideRequest: service error", "error", err, "request_id", id, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("DecideRequest: request decided", "request_id", id, "status", req.Status, "user_id", userID)
	h.WriteJSON(w, http.StatusOK, req)
}

// BulkDecide handles POST /approvals/bulk
func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "BulkDecide")
	if !ok {
		return
	}

	var dto BulkDecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("BulkDecide: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids, err := h.Service.BulkDecide(r.Context(), userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": dto.Status, "ids": ids})
}

// ListReceipts handles GET /requests/{id}/receipts
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "ListReceipts")
	if !ok {
		return
	}

	receipts, err := h.Service.Receipts(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"receipts": receipts})
}

// AttachReceipts handles POST /requests/{id}/receipts (multipart)
func (h *Handler) AttachReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "AttachReceipts")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		h.Logger.Error("AttachReceipts: invalid multipart body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, closeAll, err := openReceipts(r.MultipartForm)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "unreadable receipt file")
		return
	}
	defer closeAll()

	req, err := h.Service.AttachReceipts(r.Context(), userID, chi.URLParam(r, "id"), files)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, mutationResponse{Request: req})
}

// RemoveReceipt handles DELETE /requests/{id}/receipts/{name}
func (h *Handler) RemoveReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.RequireUserID(w, r, "RemoveReceipt")
	if !ok {
		return
	}

	req, err := h.Service.RemoveReceipt(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, mutationResponse{Request: req})
}

// partial writes the saved request with its receipt error when the
// service stored the request but not its attachments.
func (h *Handler) partial(w http.ResponseWriter, status int, req *Request, err error, op string) bool {
	if err == nil || req == nil {
		return false
	}
	appErr, ok := errors.IsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeReceiptUploadFailed {
		return false
	}
	h.Logger.Warn(op+": request saved without receipts", "request_id", req.ID, "error", err)
	h.WriteJSON(w, status, mutationResponse{Request: req, ReceiptError: appErr})
	return true
}

// claimFields is implemented by the create and update DTOs so both can be
// filled from either body encoding.
type claimFields interface {
	setClaim(amount decimal.Decimal, category, expenseDate, description, merchant, notes string)
}

func (dto *CreateRequestDTO) setClaim(amount decimal.Decimal, category, expenseDate, description, merchant, notes string) {
	dto.Amount, dto.Category, dto.ExpenseDate = amount, category, expenseDate
	dto.Description, dto.Merchant, dto.Notes = description, merchant, notes
}

func (dto *UpdateRequestDTO) setClaim(amount decimal.Decimal, category, expenseDate, description, merchant, notes string) {
	dto.Amount, dto.Category, dto.ExpenseDate = amount, category, expenseDate
	dto.Description, dto.Merchant, dto.Notes = description, merchant, notes
}

// decodeClaim fills dto from a JSON or multipart/form-data body. The
// returned cleanup closes uploaded files and must always be called.
func (h *Handler) decodeClaim(w http.ResponseWriter, r *http.Request, dto claimFields) ([]ReceiptFile, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)

	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
			return nil, noop, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed).WithCause(err)
		}
		return nil, noop, nil
	}

	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		return nil, noop, errors.NewValidationError("invalid multipart body", errors.ErrCodeValidationFailed).WithCause(err)
	}
	form := r.MultipartForm
	values := url.Values(form.Value)

	amount := decimal.Zero
	if raw := strings.TrimSpace(values.Get("amount")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			form.RemoveAll()
			return nil, noop, errors.NewValidationFieldError("amount", "amount must be a number", errors.ErrCodeInvalidAmount)
		}
		amount = parsed
	}
	dto.setClaim(amount,
		values.Get("category"),
		values.Get("expense_date"),
		values.Get("description"),
		values.Get("merchant"),
		values.Get("notes"))

	files, closeAll, err := openReceipts(form)
	if err != nil {
		form.RemoveAll()
		return nil, noop, errors.NewValidationError("unreadable receipt file", errors.ErrCodeValidationFailed).WithCause(err)
	}
	return files, func() {
		closeAll()
		form.RemoveAll()
	}, nil
}

func openReceipts(form *multipart.Form) ([]ReceiptFile, func(), error) {
	headers := form.File["receipts"]
	files := make([]ReceiptFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		files = append(files, ReceiptFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return files, closeAll, nil
}

func listFilter(r *http.Request) ListFilter {
	return ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Year:   transport.QueryInt(r, "year", 0),
	}
}

var (
	_ claimFields = (*CreateRequestDTO)(nil)
	_ claimFields = (*UpdateRequestDTO)(nil)
)
