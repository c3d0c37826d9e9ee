package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/messaging-permissions/internal"
	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		handler *Handler
		gen     *JWTTokenGenerator
		roles   *RoleAuthorization
	)

	ginkgo.BeforeEach(func() {
		gen = NewJWTTokenGenerator(accessSecret, refreshSecret, 15*time.Minute, time.Hour)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		handler = NewHandler(NewService(newMockRepository(), gen, bcrypt.MinCost, logger))
		roles = NewRoleAuthorization(logger)
	})

	whoAmI := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		w.Header().Set("X-User", user.ID+"|"+internal.UserIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	bearer := func(u *User) string {
		token, err := gen.GenerateAccessToken(u)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return "Bearer " + token
	}

	ginkgo.Describe("Login", func() {
		ginkgo.It("returns tokens as JSON", func() {
			body, _ := json.Marshal(LoginDTO{Email: "admin@example.com", Password: "correct_password"})
			rec := httptest.NewRecorder()
			handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			var tokens AuthTokens
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &tokens)).To(gomega.Succeed())
			gomega.Expect(tokens.AccessToken).NotTo(gomega.BeEmpty())
		})

		ginkgo.It("maps bad credentials to 401", func() {
			body, _ := json.Marshal(LoginDTO{Email: "admin@example.com", Password: "nope"})
			rec := httptest.NewRecorder()
			handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeInvalidCredentials)))
		})

		ginkgo.It("rejects a malformed body", func() {
			rec := httptest.NewRecorder()
			handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{")))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		ginkgo.It("puts the caller into the request context", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", bearer(&User{ID: "seek-1", Role: coreuser.RoleJobSeeker}))
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(whoAmI).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Header().Get("X-User")).To(gomega.Equal("seek-1|seek-1"))
		})

		ginkgo.It("answers 401 without a token", func() {
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(whoAmI).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("answers 401 for an expired token", func() {
			gen.now = func() time.Time { return time.Now().Add(-time.Hour) }
			header := bearer(&User{ID: "seek-1", Role: coreuser.RoleJobSeeker})
			gen.now = time.Now

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(whoAmI).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodeTokenExpired)))
		})
	})

	ginkgo.Describe("RequireAdmin", func() {
		ginkgo.It("lets admins through", func() {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(ContextWithUser(context.Background(), &User{ID: "admin-1", Role: coreuser.RoleAdmin}))
			rec := httptest.NewRecorder()

			roles.RequireAdmin()(whoAmI).ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("forbids other roles", func() {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(ContextWithUser(context.Background(), &User{ID: "emp-1", Role: coreuser.RoleEmployer}))
			rec := httptest.NewRecorder()

			roles.RequireAdmin()(whoAmI).ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("answers 401 when no user is attached", func() {
			rec := httptest.NewRecorder()
			roles.RequireAdmin()(whoAmI).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.It("accepts logout with a valid token", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", bearer(&User{ID: "emp-1", Role: coreuser.RoleEmployer}))
		rec := httptest.NewRecorder()

		handler.Logout(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
	})
})
