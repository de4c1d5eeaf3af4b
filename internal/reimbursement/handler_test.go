package reimbursement_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/ledger"
	"github.com/frahmantamala/reimbursement-tracker/internal/reimbursement"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
)

var _ = Describe("Handler", func() {
	var (
		repo   *mockRequestRepository
		blobs  *memoryBlobs
		router chi.Router
		actor  string
		svc    *reimbursement.Service
	)

	BeforeEach(func() {
		repo = newMockRequestRepository()
		blobs = newMemoryBlobs()
		users := mockUsers{
			"emp-1": {ID: "emp-1", Role: user.RoleEmployee, ManagerID: strPtr("mgr-1"), ReimbursementBudget: dec("1000"), IsActive: true},
			"mgr-1": {ID: "mgr-1", Role: user.RoleManager, ReimbursementBudget: dec("1000"), IsActive: true},
		}
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = reimbursement.NewService(repo, users, ledger.NewService(users, repo, lg), blobs, &recordingPublisher{}, lg).
			WithClock(func() time.Time { return fixedNow })
		h := reimbursement.NewHandler(svc, 1<<20)

		actor = "emp-1"
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(errors.ContextWithUserID(r.Context(), actor)))
			})
		})
		router.Post("/requests", h.CreateRequest)
		router.Put("/requests/{id}", h.UpdateRequest)
		router.Delete("/requests/{id}", h.DeleteRequest)
		router.Get("/requests/{id}", h.GetRequest)
		router.Get("/requests", h.ListMyRequests)
		router.Get("/approvals", h.ListApprovals)
		router.Patch("/approvals/{id}", h.DecideRequest)
		router.Post("/approvals/bulk", h.BulkDecide)
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	jsonBody := func(v interface{}) *bytes.Reader {
		b, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return bytes.NewReader(b)
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	claim := map[string]interface{}{
		"amount":       "42.10",
		"category":     "Office Supplies",
		"expense_date": "2024-06-01",
		"description":  "Printer paper",
		"merchant":     "Paper Co",
	}

	It("creates a request from JSON", func() {
		rec := serve(httptest.NewRequest(http.MethodPost, "/requests", jsonBody(claim)))
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var body struct {
			Request reimbursement.Request `json:"request"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Request.Amount.StringFixed(2)).To(Equal("42.10"))
		Expect(body.Request.Status).To(Equal(reimbursement.StatusPending))
		Expect(repo.requests).To(HaveLen(1))
	})

	It("creates a request from a multipart form with receipts", func() {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		for k, v := range claim {
			Expect(mw.WriteField(k, v.(string))).To(Succeed())
		}
		part, err := mw.CreateFormFile("receipts", "paper.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, _ = part.Write([]byte("%PDF"))
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/requests", buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := serve(req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(blobs.objects).To(HaveLen(1))
		for p, content := range blobs.objects {
			Expect(p).To(HaveSuffix("_0_paper.pdf"))
			Expect(content).To(Equal("%PDF"))
		}
	})

	It("refuses a JSON body larger than the upload limit", func() {
		// Given a handler capped at 64 bytes
		h := reimbursement.NewHandler(svc, 64)
		big := map[string]interface{}{}
		for k, v := range claim {
			big[k] = v
		}
		big["description"] = strings.Repeat("paper ", 200)

		// When a larger JSON claim is posted
		req := httptest.NewRequest(http.MethodPost, "/requests", jsonBody(big))
		req = req.WithContext(errors.ContextWithUserID(req.Context(), "emp-1"))
		rec := httptest.NewRecorder()
		h.CreateRequest(rec, req)

		// Then it is rejected before anything is stored
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(repo.requests).To(BeEmpty())
	})

	It("rejects a non-numeric multipart amount", func() {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		Expect(mw.WriteField("amount", "lots")).To(Succeed())
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/requests", buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := serve(req)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(string(errors.ErrCodeInvalidAmount)))
	})

	It("reports the receipt failure alongside the saved request", func() {
		blobs.failOn = "paper.pdf"
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		for k, v := range claim {
			Expect(mw.WriteField(k, v.(string))).To(Succeed())
		}
		part, err := mw.CreateFormFile("receipts", "paper.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, _ = part.Write([]byte("%PDF"))
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/requests", buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := serve(req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(ContainSubstring(string(errors.ErrCodeReceiptUploadFailed)))
		Expect(repo.requests).To(HaveLen(1))
	})

	It("maps a budget overrun to 422", func() {
		over := map[string]interface{}{}
		for k, v := range claim {
			over[k] = v
		}
		over["amount"] = "1000.01"

		rec := serve(httptest.NewRequest(http.MethodPost, "/requests", jsonBody(over)))
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(errorCode(rec)).To(Equal(string(errors.ErrCodeBudgetExceeded)))
	})

	It("edits, then refuses to delete a decided request", func() {
		repo.put(pendingRequest("r-1", "emp-1", "10", date(2024, time.May, 2)))

		edit := map[string]interface{}{}
		for k, v := range claim {
			edit[k] = v
		}
		edit["amount"] = "15"
		rec := serve(httptest.NewRequest(http.MethodPut, "/requests/r-1", jsonBody(edit)))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(repo.requests["r-1"].Amount.StringFixed(2)).To(Equal("15.00"))

		actor = "mgr-1"
		rec = serve(httptest.NewRequest(http.MethodPatch, "/approvals/r-1", jsonBody(map[string]string{"status": "Approved"})))
		Expect(rec.Code).To(Equal(http.StatusOK))

		actor = "emp-1"
		rec = serve(httptest.NewRequest(http.MethodDelete, "/requests/r-1", nil))
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(rec)).To(Equal(string(errors.ErrCodeNotDeletable)))
	})

	It("deletes a pending request", func() {
		repo.put(pendingRequest("r-1", "emp-1", "10", date(2024, time.May, 2)))
		rec := serve(httptest.NewRequest(http.MethodDelete, "/requests/r-1", nil))
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(repo.requests).To(BeEmpty())
	})

	It("returns 409 with failed ids from a bulk decision", func() {
		repo.put(pendingRequest("id1", "emp-1", "10", date(2024, time.May, 2)))
		done := pendingRequest("id2", "emp-1", "10", date(2024, time.May, 2))
		done.Status = reimbursement.StatusRejected
		repo.put(done)

		actor = "mgr-1"
		rec := serve(httptest.NewRequest(http.MethodPost, "/approvals/bulk",
			jsonBody(map[string]interface{}{"ids": []string{"id1", "id2"}, "status": "Approved"})))

		Expect(rec.Code).To(Equal(http.StatusConflict))
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Details struct {
					IDs []string `json:"ids"`
				} `json:"details"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Error.Code).To(Equal(string(errors.ErrCodeBulkDecisionFailed)))
		Expect(body.Error.Details.IDs).To(Equal([]string{"id2"}))
	})

	It("lists the approver queue and rejects unknown queues", func() {
		repo.put(pendingRequest("id1", "emp-1", "10", date(2024, time.May, 2)))
		actor = "mgr-1"

		rec := serve(httptest.NewRequest(http.MethodGet, "/approvals", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"id1"`))

		rec = serve(httptest.NewRequest(http.MethodGet, "/approvals?queue=later", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("filters my requests by status", func() {
		repo.put(pendingRequest("id1", "emp-1", "10", date(2024, time.May, 2)))
		rec := serve(httptest.NewRequest(http.MethodGet, "/requests?status=Approved", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(strings.TrimSpace(rec.Body.String())).To(Equal(`{"requests":[]}`))
	})

	It("requires an authenticated user", func() {
		actor = ""
		rec := serve(httptest.NewRequest(http.MethodGet, "/requests/r-1", nil).WithContext(context.Background()))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
