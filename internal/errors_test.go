package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/reimbursement-tracker/internal"
)

var _ = Describe("AppError", func() {
	Describe("NewBudgetExceededError", func() {
		It("should carry available, requested and shortfall amounts", func() {
			// Given
			available := decimal.NewFromInt(600)
			requested := decimal.NewFromInt(700)

			// When
			err := internal.NewBudgetExceededError(available, requested)

			// Then
			Expect(err.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(err.Code).To(Equal(internal.ErrCodeBudgetExceeded))
			details, ok := err.Details.(internal.BudgetShortfall)
			Expect(ok).To(BeTrue())
			Expect(details.Available.Equal(available)).To(BeTrue())
			Expect(details.Shortfall.Equal(decimal.NewFromInt(100))).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("600.00 available"))
		})

		It("should report a negative balance as zero available", func() {
			err := internal.NewBudgetExceededError(decimal.NewFromInt(-50), decimal.NewFromInt(10))

			details := err.Details.(internal.BudgetShortfall)
			Expect(details.Available.IsZero()).To(BeTrue())
			Expect(details.Shortfall.Equal(decimal.NewFromInt(10))).To(BeTrue())
		})
	})

	Describe("NewBulkDecisionFailedError", func() {
		It("should list the offending ids", func() {
			err := internal.NewBulkDecisionFailedError([]string{"id-2"})

			Expect(err.StatusCode).To(Equal(http.StatusConflict))
			Expect(err.Details).To(Equal(internal.BulkDecisionFailure{IDs: []string{"id-2"}}))
		})
	})

	Describe("errors.Is", func() {
		It("should match sentinels by code through wrapping", func() {
			err := fmt.Errorf("decide: %w", internal.ErrAlreadyDecided)

			Expect(errors.Is(err, internal.ErrAlreadyDecided)).To(BeTrue())
			Expect(errors.Is(err, internal.ErrNotEditable)).To(BeFalse())
		})

		It("should match a copy produced by WithCause without mutating the sentinel", func() {
			cause := errors.New("connection refused")
			err := internal.NewStoreUnavailableError(cause)

			Expect(errors.Is(err, internal.ErrStoreUnavailable)).To(BeTrue())
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(internal.ErrStoreUnavailable.Cause).To(BeNil())
		})
	})

	Describe("IsAppError", func() {
		It("should unwrap wrapped app errors", func() {
			wrapped := fmt.Errorf("outer: %w", internal.ErrUserNotFound)

			appErr, ok := internal.IsAppError(wrapped)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeUserNotFound))
		})

		It("should reject plain errors", func() {
			_, ok := internal.IsAppError(errors.New("plain"))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("MarshalJSON", func() {
		It("should omit status code and cause", func() {
			err := internal.ErrNotEditable.WithCause(errors.New("hidden"))

			data, marshalErr := json.Marshal(err)
			Expect(marshalErr).NotTo(HaveOccurred())
			Expect(string(data)).To(MatchJSON(`{"type":"CONFLICT","code":"NOT_EDITABLE","message":"Only pending requests can be edited"}`))
		})
	})
})
