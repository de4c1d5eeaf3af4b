package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/pkg/logger"
)

var _ = ginkgo.Describe("AuthHandler", func() {
	var (
		handler *Handler
		service *Service
	)

	ginkgo.BeforeEach(func() {
		hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		repo := &mockCredentialRepository{byEmail: map[string]*Credentials{}, byID: map[string]*Credentials{}}
		repo.add("eve@corp.test", &Credentials{UserID: "emp-1", PasswordHash: string(hash), IsActive: true})

		service = NewService(repo, NewJWTTokenGenerator("a", "r", 0, 0), NewMemoryBlacklist(), logger.LoggerWrapper())
		handler = NewHandler(service)
	})

	doLogin := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec
	}

	ginkgo.It("should return tokens on login", func() {
		// When
		rec := doLogin(`{"email":"eve@corp.test","password":"s3cret"}`)

		// Then
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var tokens AuthTokens
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &tokens)).To(gomega.Succeed())
		gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
		gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
	})

	ginkgo.It("should answer 401 with the error code for a bad password", func() {
		// When
		rec := doLogin(`{"email":"eve@corp.test","password":"nope"}`)

		// Then
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(errors.ErrCodeInvalidCredentials)))
	})

	ginkgo.It("should answer 400 for a malformed body", func() {
		rec := doLogin(`{"email":`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var seen string

		protected := func() http.Handler {
			return handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = errors.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))
		}

		ginkgo.BeforeEach(func() {
			seen = ""
		})

		ginkgo.It("should put the user id in the context", func() {
			// Given
			tokens, err := service.Authenticate(context.Background(), LoginDTO{Email: "eve@corp.test", Password: "s3cret"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
			rec := httptest.NewRecorder()

			// When
			protected().ServeHTTP(rec, req)

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seen).To(gomega.Equal("emp-1"))
		})

		ginkgo.It("should reject a missing header", func() {
			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(seen).To(gomega.BeEmpty())
		})

		ginkgo.It("should reject a token after logout", func() {
			// Given
			tokens, err := service.Authenticate(context.Background(), LoginDTO{Email: "eve@corp.test", Password: "s3cret"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			logout.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
			logoutRec := httptest.NewRecorder()
			handler.Logout(logoutRec, logout)
			gomega.Expect(logoutRec.Code).To(gomega.Equal(http.StatusNoContent))

			// When
			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
			rec := httptest.NewRecorder()
			protected().ServeHTTP(rec, req)

			// Then
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(errors.ErrCodeTokenRevoked)))
		})
	})
})
