package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/concretoya/api/internal/services/lead"
)

// LeadHandler captures contact leads from the marketing site.
type LeadHandler struct {
	leadSvc *lead.Service
	logger  *slog.Logger
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(leadSvc *lead.Service, logger *slog.Logger) *LeadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadHandler{leadSvc: leadSvc, logger: logger}
}

// RegisterRoutes registers the lead API routes.
func (h *LeadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/leads", h.CreateLead)
}

type createLeadRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Message    string            `json:"message,omitempty"`
	SourcePage string            `json:"sourcePage,omitempty"`
	UTM        map[string]string `json:"utm,omitempty"`
}

// CreateLead handles POST /api/v1/leads.
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	l, err := h.leadSvc.Create(r.Context(), lead.CreateParams{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    req.Message,
		SourcePage: req.SourcePage,
		UTM:        req.UTM,
	})
	if err != nil {
		if errors.Is(err, lead.ErrMissingContact) {
			writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: "name and email are required"})
			return
		}
		h.logger.Error("failed to create lead", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, l)
}
