package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/domain"
	"github.com/toleubekov/kitchen-sync/internal/interfaces"
)

type TransitionHandler struct {
	service interfaces.TransitionService
	logger  logger.Logger
}

func NewTransitionHandler(service interfaces.TransitionService, logger logger.Logger) *TransitionHandler {
	return &TransitionHandler{
		service: service,
		logger:  logger,
	}
}

type TransitionRequest struct {
	RequestedStatus string `json:"requested_status"`
	ExpectedVersion int64  `json:"expected_version"`
	RequestedBy     string `json:"requested_by,omitempty"`
}

type TransitionResponse struct {
	Status string                  `json:"status"`
	Event  *domain.TransitionEvent `json:"event,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleOrders routes /orders/{id}, /orders/{id}/transition and
// /orders/{id}/history.
func (h *TransitionHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[1] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	orderID := parts[1]

	switch {
	case len(parts) == 2:
		h.getOrder(w, r, orderID)
	case len(parts) == 3 && parts[2] == "transition":
		h.requestTransition(w, r, orderID)
	case len(parts) == 3 && parts[2] == "history":
		h.getHistory(w, r, orderID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *TransitionHandler) requestTransition(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}

	cmd := interfaces.TransitionCommand{
		OrderID:         orderID,
		RequestedStatus: domain.Status(req.RequestedStatus),
		ExpectedVersion: req.ExpectedVersion,
		RequestedBy:     req.RequestedBy,
	}

	event, err := h.service.RequestTransition(r.Context(), cmd)
	if err != nil {
		h.logger.Debug("transition_failed", "Transition request failed", orderID, map[string]interface{}{
			"code":      domain.Code(err),
			"requested": req.RequestedStatus,
		})
		h.respondError(w, statusFor(err), domain.Code(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransitionResponse{Status: "ok", Event: event})
}

func (h *TransitionHandler) getOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, statusFor(err), domain.Code(err), err.Error())
		return
	}

	resp := map[string]interface{}{
		"order_id":   order.ID,
		"tenant_id":  order.TenantID,
		"status":     order.Status,
		"version":    order.Version,
		"items":      order.Items,
		"updated_at": order.UpdatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *TransitionHandler) getHistory(w http.ResponseWriter, r *http.Request, orderID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history, err := h.service.GetStatusHistory(r.Context(), orderID)
	if err != nil {
		h.respondError(w, statusFor(err), domain.Code(err), err.Error())
		return
	}

	resp := make([]map[string]interface{}, len(history))
	for i, log := range history {
		resp[i] = map[string]interface{}{
			"status":     log.Status,
			"changed_by": log.ChangedBy,
			"timestamp":  log.ChangedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrUnknownStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrIndeterminate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *TransitionHandler) respondError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Status: "error", Code: code, Message: message})
}
