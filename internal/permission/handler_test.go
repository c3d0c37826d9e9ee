package permission_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal/auth"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
	"github.com/frahmantamala/messaging-permissions/internal/transport"
)

var _ = Describe("Handler", func() {
	var (
		f      *fixture
		router *chi.Mux
	)

	// withUser stands in for the JWT middleware: X-Test-User carries the
	// caller id and the fixture's directory supplies the role.
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				role := f.users.roles[id]
				r = r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: id, Role: role}))
			}
			next.ServeHTTP(w, r)
		})
	}

	do := func(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
		var payload io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			payload = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, payload)
		if userID != "" {
			req.Header.Set("X-Test-User", userID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	errorCode := func(w *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		return body.Error.Code
	}

	BeforeEach(func() {
		f = newFixture()
		h := permission.NewHandler(f.svc)
		h.BaseHandler = transport.NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

		router = chi.NewRouter()
		router.Use(withUser)
		router.Route("/messaging", func(r chi.Router) {
			r.Post("/requests", h.RequestPermission)
			r.Patch("/requests/{id}", h.RespondToRequest)
			r.Get("/can-message/{recipientId}", h.CanMessage)
			r.Post("/blocks/{userId}", h.Block)
			r.Delete("/blocks/{userId}", h.Unblock)
			r.Get("/permissions/incoming", h.ListIncoming)
			r.Get("/permissions/outgoing", h.ListOutgoing)
			r.Get("/permissions/active", h.ListActive)
			r.Get("/permissions/stats", h.Stats)
			r.Post("/sponsors/{employerId}/renewals", h.RenewForSponsor)
		})
		router.Post("/admin/messaging/sweep", h.Sweep)
	})

	It("requires an authenticated caller", func() {
		w := do(http.MethodGet, "/messaging/permissions/stats", "", nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("runs a request through approval to an allowed check", func() {
		w := do(http.MethodPost, "/messaging/requests", "seek-1", map[string]interface{}{
			"target_id": "seek-2",
			"message":   "hello",
		})
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created permission.Permission
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.Status).To(Equal(permission.StatusPending))

		w = do(http.MethodGet, "/messaging/permissions/incoming", "seek-2", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var incoming permission.PermissionListDTO
		Expect(json.NewDecoder(w.Body).Decode(&incoming)).To(Succeed())
		Expect(incoming.Total).To(Equal(1))

		w = do(http.MethodPatch, "/messaging/requests/"+created.ID, "seek-2", map[string]string{"decision": "approved"})
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/messaging/can-message/seek-2", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var decision permission.Decision
		Expect(json.NewDecoder(w.Body).Decode(&decision)).To(Succeed())
		Expect(decision.Allowed).To(BeTrue())
		Expect(decision.Reason).To(Equal(permission.ReasonApproved))
		Expect(decision.Trace).To(BeEmpty())
	})

	It("includes the decision trace on request", func() {
		w := do(http.MethodGet, "/messaging/can-message/seek-2?trace=true", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))

		var decision permission.Decision
		Expect(json.NewDecoder(w.Body).Decode(&decision)).To(Succeed())
		Expect(decision.Allowed).To(BeFalse())
		Expect(decision.Trace).NotTo(BeEmpty())
	})

	It("validates the request body", func() {
		w := do(http.MethodPost, "/messaging/requests", "seek-1", map[string]interface{}{"ttl_days": 400})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorCode(w)).To(Equal("VALIDATION_FAILED"))
	})

	It("maps domain errors to their status", func() {
		w := do(http.MethodPost, "/messaging/requests", "seek-1", map[string]string{"target_id": "seek-1"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorCode(w)).To(Equal("SELF_PERMISSION"))

		f.request("seek-1", "seek-2")
		w = do(http.MethodPost, "/messaging/requests", "seek-1", map[string]string{"target_id": "seek-2"})
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(w)).To(Equal("REQUEST_ALREADY_PENDING"))
	})

	It("forbids answering someone else's request", func() {
		p := f.request("seek-1", "seek-2")

		w := do(http.MethodPatch, "/messaging/requests/"+p.ID, "seek-3", map[string]string{"decision": "approved"})
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(w)).To(Equal("NOT_REQUEST_TARGET"))
	})

	It("blocks and unblocks", func() {
		w := do(http.MethodPost, "/messaging/blocks/seek-2", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(f.row("seek-2", "seek-1").Status).To(Equal(permission.StatusBlocked))

		w = do(http.MethodDelete, "/messaging/blocks/seek-1", "seek-2", nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))

		w = do(http.MethodDelete, "/messaging/blocks/seek-2", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(f.row("seek-2", "seek-1").Status).To(Equal(permission.StatusPending))
	})

	It("returns stats", func() {
		f.request("seek-1", "seek-2")

		w := do(http.MethodGet, "/messaging/permissions/stats", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var stats permission.Stats
		Expect(json.NewDecoder(w.Body).Decode(&stats)).To(Succeed())
		Expect(stats.OutgoingPending).To(Equal(1))
	})

	It("renews for the sponsor", func() {
		f.rels.apply("seek-1", "emp-1")
		f.canMessage("emp-1", "seek-1")
		f.clock.Advance(95 * day)
		f.ents.set("emp-1", true)

		w := do(http.MethodPost, "/messaging/sponsors/emp-1/renewals", "emp-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var result permission.RenewalResultDTO
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())
		Expect(result.RenewedCount).To(Equal(2))

		w = do(http.MethodPost, "/messaging/sponsors/emp-1/renewals", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("restricts the sweep to administrators", func() {
		w := do(http.MethodPost, "/admin/messaging/sweep", "seek-1", nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))

		f.request("seek-1", "seek-2")
		f.clock.Advance(8 * day)

		w = do(http.MethodPost, "/admin/messaging/sweep", "admin-1", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var result permission.SweepResultDTO
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())
		Expect(result.RejectedCount).To(Equal(int64(1)))
	})
})
