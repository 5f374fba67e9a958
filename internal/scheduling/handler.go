package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// Handler exposes the scheduling config over HTTP.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates a scheduling config handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts under /workspaces/{workspaceID}/scheduling.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetConfig)
	r.Put("/", h.SaveConfig)
	return r
}

// GetConfig returns the workspace config, or the default when none is saved.
// GET /workspaces/{workspaceID}/scheduling
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if workspaceID == "" {
		http.Error(w, `{"error": "workspace_id required"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to get scheduling config", "workspace_id", workspaceID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SaveConfigRequest is the full replacement body for PUT. Every field is
// required; pointers distinguish "absent" from a zero value.
type SaveConfigRequest struct {
	Timezone            *string                `json:"timezone"`
	WorkingHours        *[]WorkingDay          `json:"working_hours"`
	SlotDurationMinutes *int                   `json:"slot_duration_minutes"`
	BufferBeforeMinutes *int                   `json:"buffer_before_minutes"`
	BufferAfterMinutes  *int                   `json:"buffer_after_minutes"`
	MinimumNoticeHours  *int                   `json:"minimum_notice_hours"`
	MaxDaysAhead        *int                   `json:"max_days_ahead"`
	ChatbotBooking      *ChatbotBookingRequest `json:"chatbot_booking"`
	// Echoed back from GET responses; ignored.
	WorkspaceID *string `json:"workspace_id,omitempty"`
	UpdatedAt   *string `json:"updated_at,omitempty"`
}

type ChatbotBookingRequest struct {
	Mode            *BookingMode     `json:"mode"`
	PromptStyle     *PromptStyle     `json:"prompt_style"`
	RequiredFields  *[]IdentityField `json:"required_fields"`
	AllowCustomTime *bool            `json:"allow_custom_time"`
}

// toConfig reports every missing field instead of filling defaults.
func (req SaveConfigRequest) toConfig(workspaceID string) (*Config, error) {
	verr := &ValidationError{}
	missing := func(present bool, field string) {
		if !present {
			verr.add(field, "required")
		}
	}
	missing(req.Timezone != nil, "timezone")
	missing(req.WorkingHours != nil, "working_hours")
	missing(req.SlotDurationMinutes != nil, "slot_duration_minutes")
	missing(req.BufferBeforeMinutes != nil, "buffer_before_minutes")
	missing(req.BufferAfterMinutes != nil, "buffer_after_minutes")
	missing(req.MinimumNoticeHours != nil, "minimum_notice_hours")
	missing(req.MaxDaysAhead != nil, "max_days_ahead")
	missing(req.ChatbotBooking != nil, "chatbot_booking")
	if cb := req.ChatbotBooking; cb != nil {
		missing(cb.Mode != nil, "chatbot_booking.mode")
		missing(cb.PromptStyle != nil, "chatbot_booking.prompt_style")
		missing(cb.RequiredFields != nil, "chatbot_booking.required_fields")
		missing(cb.AllowCustomTime != nil, "chatbot_booking.allow_custom_time")
	}
	if len(verr.Problems) > 0 {
		return nil, verr
	}

	cfg := &Config{
		WorkspaceID:         workspaceID,
		Timezone:            *req.Timezone,
		WorkingHours:        *req.WorkingHours,
		SlotDurationMinutes: *req.SlotDurationMinutes,
		BufferBeforeMinutes: *req.BufferBeforeMinutes,
		BufferAfterMinutes:  *req.BufferAfterMinutes,
		MinimumNoticeHours:  *req.MinimumNoticeHours,
		MaxDaysAhead:        *req.MaxDaysAhead,
		ChatbotBooking: ChatbotBooking{
			Mode:            *req.ChatbotBooking.Mode,
			PromptStyle:     *req.ChatbotBooking.PromptStyle,
			RequiredFields:  *req.ChatbotBooking.RequiredFields,
			AllowCustomTime: *req.ChatbotBooking.AllowCustomTime,
		},
	}
	return cfg, nil
}

// SaveConfig replaces the workspace config with the full object in the body.
// PUT /workspaces/{workspaceID}/scheduling
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if workspaceID == "" {
		http.Error(w, `{"error": "workspace_id required"}`, http.StatusBadRequest)
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req SaveConfigRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return
	}

	cfg, err := req.toConfig(workspaceID)
	if err == nil {
		err = h.store.Save(r.Context(), cfg)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid scheduling config", "fields": verr.Problems})
		return
	}
	if err != nil {
		h.logger.Error("failed to save scheduling config", "workspace_id", workspaceID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("scheduling config updated", "workspace_id", workspaceID, "chatbot_mode", cfg.ChatbotBooking.Mode)
	writeJSON(w, http.StatusOK, cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
