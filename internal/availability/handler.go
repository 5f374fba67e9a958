package availability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// Handler serves slot listings for dashboards and agents.
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

// Routes mounts under /workspaces/{workspaceID}/availability.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListSlots)
	return r
}

type slotsResponse struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Slots []Slot    `json:"slots"`
}

// ListSlots returns slots for ?from=&to= (RFC3339), defaulting to the next 7 days.
// GET /workspaces/{workspaceID}/availability
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if workspaceID == "" {
		http.Error(w, `{"error": "workspace_id required"}`, http.StatusBadRequest)
		return
	}

	window := h.service.DefaultWindow()
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "from must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		window.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "to must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		window.To = to
	}
	if !window.From.Before(window.To) {
		http.Error(w, `{"error": "from must be before to"}`, http.StatusBadRequest)
		return
	}

	slots, err := h.service.Slots(r.Context(), workspaceID, window)
	if err != nil {
		h.logger.Error("failed to compute slots", "workspace_id", workspaceID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(slotsResponse{From: window.From, To: window.To, Slots: slots}); err != nil {
		h.logger.Error("failed to encode slots", "workspace_id", workspaceID, "error", err)
	}
}
