/**
 * @description
 * This file contains the HTTP handlers for the settlement-service's internal
 * API. Handlers parse incoming requests, call the settlement service, and
 * write the HTTP response. The only write operation is triggering a flight
 * plan closure; the read operation returns the settlement messages a closure
 * persisted.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/airwaysim/settlement-service/internal/app"
	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SettlementHandlers holds the application service that handlers will use.
type SettlementHandlers struct {
	service        *app.Service
	internalAPIKey string
}

// NewSettlementHandlers creates the handler set for the settlement API.
func NewSettlementHandlers(service *app.Service, internalAPIKey string) *SettlementHandlers {
	return &SettlementHandlers{service: service, internalAPIKey: internalAPIKey}
}

// closureResponse is the wire form of a closure result. The settlement error,
// if any, is flattened to a string so the platform can log and display it.
type closureResponse struct {
	PlanID            string                    `json:"plan_id"`
	Closed            bool                      `json:"closed"`
	AlreadyClosed     bool                      `json:"already_closed"`
	ActualDurationMin int                       `json:"actual_duration_min"`
	Settlement        *domain.SettlementOutcome `json:"settlement,omitempty"`
	SettlementError   *string                   `json:"settlement_error,omitempty"`
}

// ClosePlanHandler triggers settlement and closure for a flight plan.
func (h *SettlementHandlers) ClosePlanHandler(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flight plan id")
		return
	}

	result, err := h.service.CloseFlightPlan(r.Context(), planID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			respondError(w, http.StatusNotFound, "flight plan not found")
			return
		}
		log.Printf("level=error component=api msg=\"closure failed\" plan_id=%s err=%v", planID, err)
		respondError(w, http.StatusInternalServerError, "failed to close flight plan")
		return
	}

	resp := closureResponse{
		PlanID:            result.PlanID.String(),
		Closed:            result.Closed,
		AlreadyClosed:     result.AlreadyClosed,
		ActualDurationMin: result.ActualDurationMin,
		Settlement:        result.Settlement,
	}
	if result.SettlementErr != nil {
		msg := result.SettlementErr.Error()
		resp.SettlementError = &msg
	}

	status := http.StatusOK
	if result.AlreadyClosed {
		status = http.StatusConflict
	}
	respondJSON(w, status, resp)
}

// GetSettlementHandler returns the settlement messages persisted for a plan.
func (h *SettlementHandlers) GetSettlementHandler(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid flight plan id")
		return
	}

	messages, err := h.service.SettlementMessages(r.Context(), planID)
	if err != nil {
		log.Printf("level=error component=api msg=\"settlement lookup failed\" plan_id=%s err=%v", planID, err)
		respondError(w, http.StatusInternalServerError, "failed to load settlement messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plan_id":  planID.String(),
		"messages": messages,
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
