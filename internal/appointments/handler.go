package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// Handler exposes appointment management for the dashboard.
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

// Routes mounts under /workspaces/{workspaceID}/appointments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{appointmentID}", h.Get)
	r.Patch("/{appointmentID}", h.Update)
	r.Post("/{appointmentID}/complete", h.statusAction(h.service.Complete))
	r.Post("/{appointmentID}/cancel", h.statusAction(h.service.Cancel))
	r.Post("/{appointmentID}/no-show", h.statusAction(h.service.MarkNoShow))
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		WorkspaceID: chi.URLParam(r, "workspaceID"),
		LeadID:      r.URL.Query().Get("lead_id"),
		Status:      Status(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be RFC3339")
			return
		}
		*p.dst = &ts
	}

	appts, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, filter.WorkspaceID, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.WorkspaceID = chi.URLParam(r, "workspaceID")

	result, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, req.WorkspaceID, err)
		return
	}
	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Appointment)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	appt, err := h.service.Get(r.Context(), workspaceID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.respondErr(w, workspaceID, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// UpdateRequest edits details and, optionally, moves the appointment.
type UpdateRequest struct {
	Details
	StartAt         *time.Time `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	id := chi.URLParam(r, "appointmentID")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.StartAt != nil || req.DurationMinutes != 0 {
		var start time.Time
		if req.StartAt != nil {
			start = *req.StartAt
		} else {
			current, getErr := h.service.Get(r.Context(), workspaceID, id)
			if getErr != nil {
				h.respondErr(w, workspaceID, getErr)
				return
			}
			start = current.StartAt
		}
		_, err := h.service.Reschedule(r.Context(), RescheduleRequest{
			WorkspaceID: workspaceID, ID: id, StartAt: start, DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			h.respondErr(w, workspaceID, err)
			return
		}
	}
	appt, err := h.service.Update(r.Context(), workspaceID, id, req.Details)
	if err != nil {
		h.respondErr(w, workspaceID, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type statusFunc func(ctx context.Context, workspaceID, id string) (*Appointment, error)

func (h *Handler) statusAction(fn statusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID := chi.URLParam(r, "workspaceID")
		appt, err := fn(r.Context(), workspaceID, chi.URLParam(r, "appointmentID"))
		if err != nil {
			h.respondErr(w, workspaceID, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, workspaceID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, ErrSlotUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotEditable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("appointment request failed", "workspace_id", workspaceID, "error", err)
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
