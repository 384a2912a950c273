package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/models"
)

// getWarranty returns one warranty with its unit
func (r *Router) getWarranty(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid warranty id")
		return
	}

	warranty, err := r.svc.Warranties.Get(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, warranty)
}

// warrantyLogs returns the audit trail of a warranty
func (r *Router) warrantyLogs(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid warranty id")
		return
	}

	logs, err := r.svc.Warranties.Logs(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// WarrantyTransitionRequest asks for a warranty status change
type WarrantyTransitionRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	AdminEdit bool   `json:"admin_edit"`
}

// transitionWarranty moves a warranty through its lifecycle
func (r *Router) transitionWarranty(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid warranty id")
		return
	}

	var body WarrantyTransitionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	warranty, err := r.svc.Warranties.TransitionStatus(
		id, models.WarrantyStatus(body.Status), body.Reason, actorFrom(req), body.AdminEdit)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	r.hub.Publish(events.TypeWarrantyChanged, map[string]interface{}{
		"warranty_id": warranty.ID,
		"status":      warranty.Status,
	})
	respondJSON(w, http.StatusOK, warranty)
}

// ExtendWarrantyRequest adds months of coverage
type ExtendWarrantyRequest struct {
	Months int    `json:"months"`
	Reason string `json:"reason"`
}

// extendWarranty adds coverage months within the cumulative cap
func (r *Router) extendWarranty(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid warranty id")
		return
	}

	var body ExtendWarrantyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	warranty, err := r.svc.Warranties.Extend(id, body.Months, body.Reason, actorFrom(req))
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, warranty)
}

// ResetWarrantyRequest returns a warranty to unregistered coverage
type ResetWarrantyRequest struct {
	Reason       string `json:"reason"`
	KeepCustomer bool   `json:"keep_customer"`
}

// resetWarranty clears registration and extension state
func (r *Router) resetWarranty(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid warranty id")
		return
	}

	var body ResetWarrantyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	warranty, err := r.svc.Warranties.Reset(id, body.Reason, actorFrom(req), body.KeepCustomer)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, warranty)
}

// ActivateWarrantyRequest registers coverage with the label's code
type ActivateWarrantyRequest struct {
	ActivationCode string `json:"activation_code"`
	CustomerID     *uint  `json:"customer_id"`
	Notes          string `json:"notes"`
}

// activateWarranty registers the warranty found by serial
func (r *Router) activateWarranty(w http.ResponseWriter, req *http.Request) {
	serial := mux.Vars(req)["serial"]

	var body ActivateWarrantyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	warranty, err := r.svc.Warranties.Activate(serial, body.ActivationCode, body.CustomerID, body.Notes)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	r.hub.Publish(events.TypeWarrantyChanged, map[string]interface{}{
		"warranty_id": warranty.ID,
		"status":      warranty.Status,
	})
	respondJSON(w, http.StatusOK, warranty)
}

// checkWarranty returns coverage state for a serial number
func (r *Router) checkWarranty(w http.ResponseWriter, req *http.Request) {
	serial := mux.Vars(req)["serial"]

	warranty, err := r.svc.Warranties.GetBySerial(serial)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"serial":     serial,
		"status":     warranty.Status,
		"expires_at": warranty.WarrantyExpirationDate,
		"is_expired": warranty.IsExpired(),
	})
}
