package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// Handler exposes negotiations to the chatbot and inbox agents.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts under /workspaces/{workspaceID}/negotiations.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Get("/{negotiationID}", h.Get)
	r.Post("/{negotiationID}/accept", h.Accept)
	r.Post("/{negotiationID}/select-slot", h.SelectSlot)
	r.Post("/{negotiationID}/identity", h.SupplyIdentity)
	r.Post("/{negotiationID}/custom-time", h.ProposeCustomTime)
	r.Post("/{negotiationID}/decline", h.Decline)
	r.Post("/{negotiationID}/restart", h.Restart)
	return r
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.WorkspaceID = chi.URLParam(r, "workspaceID")

	payload, err := h.service.StartBooking(r.Context(), req)
	if err != nil {
		h.respondErr(w, req.WorkspaceID, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	payload, err := h.service.Get(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"))
	h.respond(w, workspaceID, payload, err)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	payload, err := h.service.AcceptOffer(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"))
	h.respond(w, workspaceID, payload, err)
}

func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var slot availability.Slot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, err := h.service.SelectSlot(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"), slot)
	h.respond(w, workspaceID, payload, err)
}

type identityRequest struct {
	Field scheduling.IdentityField `json:"field"`
	Value string                   `json:"value"`
}

func (h *Handler) SupplyIdentity(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, err := h.service.SupplyIdentityField(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"), req.Field, req.Value)
	h.respond(w, workspaceID, payload, err)
}

type customTimeRequest struct {
	StartAt time.Time `json:"start_at"`
}

func (h *Handler) ProposeCustomTime(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var req customTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload, err := h.service.ProposeCustomTime(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"), req.StartAt)
	h.respond(w, workspaceID, payload, err)
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	payload, err := h.service.Decline(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"))
	h.respond(w, workspaceID, payload, err)
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	payload, err := h.service.Restart(r.Context(), workspaceID, chi.URLParam(r, "negotiationID"))
	h.respond(w, workspaceID, payload, err)
}

func (h *Handler) respond(w http.ResponseWriter, workspaceID string, payload *Payload, err error) {
	if err != nil {
		h.respondErr(w, workspaceID, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) respondErr(w http.ResponseWriter, workspaceID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "negotiation not found")
	case errors.Is(err, ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBookingDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrVersionConflict), errors.Is(err, ErrCustomTimeDisabled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("negotiation request failed", "workspace_id", workspaceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
