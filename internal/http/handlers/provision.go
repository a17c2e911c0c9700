package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/internal/provisioning"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

// ProvisionHandler exposes the provisioning flow to the admin API.
type ProvisionHandler struct {
	service *provisioning.Service
	logger  *logging.Logger
}

func NewProvisionHandler(service *provisioning.Service, logger *logging.Logger) *ProvisionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProvisionHandler{service: service, logger: logger.Component("provision_api")}
}

type provisionRequest struct {
	AreaCode string `json:"area_code"`
}

type provisionResponse struct {
	PhoneNumber string `json:"phone_number"`
	AssistantID string `json:"assistant_id"`
}

// Provision handles POST /api/dashboard/practices/{practiceID}/provision.
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	practiceID, err := uuid.Parse(chi.URLParam(r, "practiceID"))
	if err != nil {
		http.Error(w, "invalid practice id", http.StatusBadRequest)
		return
	}

	var req provisionRequest
	if r.Body != nil {
		// Body is optional; an empty area code means any US number.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.service.Provision(r.Context(), practiceID, req.AreaCode)
	if err != nil {
		if errors.Is(err, practices.ErrPracticeNotFound) {
			http.Error(w, "practice not found", http.StatusNotFound)
			return
		}
		h.logger.Error("provisioning failed", "error", err, "practice_id", practiceID)
		http.Error(w, "provisioning failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, provisionResponse{
		PhoneNumber: result.PhoneNumber,
		AssistantID: result.AssistantID,
	})
}
