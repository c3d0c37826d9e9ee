package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/auth"
	"github.com/frahmantamala/messaging-permissions/internal/core/common/validation"
	"github.com/frahmantamala/messaging-permissions/internal/transport"
	"github.com/frahmantamala/messaging-permissions/pkg/logger"
)

type ServiceAPI interface {
	RequestPermission(ctx context.Context, in RequestInput) (*Permission, error)
	RespondToRequest(ctx context.Context, in RespondInput) (*Permission, error)
	CanMessage(ctx context.Context, senderID, recipientID string) (Decision, error)
	Block(ctx context.Context, blockerID, blockedID string) ([]*Permission, error)
	Unblock(ctx context.Context, callerID, otherID string) ([]*Permission, error)
	ListIncoming(ctx context.Context, userID string) ([]*Permission, error)
	ListOutgoing(ctx context.Context, userID string) ([]*Permission, error)
	ListActive(ctx context.Context, userID string) ([]*Permission, error)
	Stats(ctx context.Context, userID string) (Stats, error)
	RenewAllExpiredForSponsor(ctx context.Context, callerID, sponsorID string) (int, error)
	SweepStalePending(ctx context.Context) (int64, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request, op string) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.Logger.Error(op + ": user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

// RequestPermission handles POST /messaging/requests
func (h *Handler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "RequestPermission")
	if !ok {
		return
	}

	var dto CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.HandleServiceError(w, verr)
		return
	}

	p, err := h.Service.RequestPermission(r.Context(), RequestInput{
		RequesterID:  user.ID,
		TargetID:     dto.TargetID,
		Message:      dto.Message,
		RelatedJobID: dto.RelatedJobID,
		TTLDays:      dto.TTLDays,
	})
	if err != nil {
		h.Logger.Warn("RequestPermission: service error", "error", err, "user_id", user.ID, "target_id", dto.TargetID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

// RespondToRequest handles PATCH /messaging/requests/{id}
func (h *Handler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "RespondToRequest")
	if !ok {
		return
	}

	permissionID := chi.URLParam(r, "id")
	var dto RespondDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := validation.Struct(dto); verr != nil {
		h.HandleServiceError(w, verr)
		return
	}

	p, err := h.Service.RespondToRequest(r.Context(), RespondInput{
		PermissionID:    permissionID,
		ResponderID:     user.ID,
		Decision:        Status(dto.Decision),
		ResponseMessage: dto.ResponseMessage,
	})
	if err != nil {
		h.Logger.Warn("RespondToRequest: service error", "error", err, "user_id", user.ID, "permission_id", permissionID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

// CanMessage handles GET /messaging/can-message/{recipientId}
func (h *Handler) CanMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "CanMessage")
	if !ok {
		return
	}

	recipientID := chi.URLParam(r, "recipientId")
	decision, err := h.Service.CanMessage(r.Context(), user.ID, recipientID)
	if err != nil {
		h.Logger.Error("CanMessage: service error", "error", err, "user_id", user.ID, "recipient_id", recipientID)
		h.HandleServiceError(w, err)
		return
	}

	if r.URL.Query().Get("trace") != "true" {
		decision.Trace = nil
	}
	h.WriteJSON(w, http.StatusOK, decision)
}

// Block handles POST /messaging/blocks/{userId}
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "Block")
	if !ok {
		return
	}

	blockedID := chi.URLParam(r, "userId")
	rows, err := h.Service.Block(r.Context(), user.ID, blockedID)
	if err != nil {
		h.Logger.Warn("Block: service error", "error", err, "user_id", user.ID, "blocked_id", blockedID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PermissionListDTO{Permissions: rows, Total: len(rows)})
}

// Unblock handles DELETE /messaging/blocks/{userId}
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "Unblock")
	if !ok {
		return
	}

	otherID := chi.URLParam(r, "userId")
	rows, err := h.Service.Unblock(r.Context(), user.ID, otherID)
	if err != nil {
		h.Logger.Warn("Unblock: service error", "error", err, "user_id", user.ID, "other_id", otherID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PermissionListDTO{Permissions: rows, Total: len(rows)})
}

func (h *Handler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListIncoming", h.Service.ListIncoming)
}

func (h *Handler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListOutgoing", h.Service.ListOutgoing)
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListActive", h.Service.ListActive)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, string) ([]*Permission, error)) {
	user, ok := h.currentUser(w, r, op)
	if !ok {
		return
	}

	rows, err := fetch(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error(op+": service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PermissionListDTO{Permissions: rows, Total: len(rows)})
}

// Stats handles GET /messaging/permissions/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "Stats")
	if !ok {
		return
	}

	stats, err := h.Service.Stats(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("Stats: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}

// RenewForSponsor handles POST /messaging/sponsors/{employerId}/renewals
func (h *Handler) RenewForSponsor(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "RenewForSponsor")
	if !ok {
		return
	}

	sponsorID := chi.URLParam(r, "employerId")
	count, err := h.Service.RenewAllExpiredForSponsor(r.Context(), user.ID, sponsorID)
	if err != nil {
		h.Logger.Warn("RenewForSponsor: service error", "error", err, "user_id", user.ID, "sponsor_id", sponsorID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RenewalResultDTO{RenewedCount: count})
}

// Sweep handles POST /admin/messaging/sweep. The route is admin-only.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, "Sweep")
	if !ok {
		return
	}
	if !user.IsAdmin() {
		h.HandleServiceError(w, internal.ErrAdminRequired)
		return
	}

	count, err := h.Service.SweepStalePending(r.Context())
	if err != nil {
		h.Logger.Error("Sweep: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SweepResultDTO{RejectedCount: count})
}
