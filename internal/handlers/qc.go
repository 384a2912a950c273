package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/models"
)

// listPendingQC returns inspections awaiting a verdict
func (r *Router) listPendingQC(w http.ResponseWriter, req *http.Request) {
	records, err := r.svc.QC.Pending()
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// getQCRecord returns one inspection
func (r *Router) getQCRecord(w http.ResponseWriter, req *http.Request) {
	record, err := r.svc.QC.Get(mux.Vars(req)["id"])
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// CompleteQCRequest records an inspection verdict
type CompleteQCRequest struct {
	Status   string       `json:"status"`
	Notes    string       `json:"notes"`
	Metadata models.JSONB `json:"metadata"`
}

// completeQC records the verdict and posts approved quantity into stock
func (r *Router) completeQC(w http.ResponseWriter, req *http.Request) {
	var body CompleteQCRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	record, err := r.svc.QC.CompleteProcess(
		mux.Vars(req)["id"], models.QCStatus(body.Status), body.Notes, body.Metadata, nil)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	// A verdict may have been the last open item of its batch
	if record.BatchItem != nil {
		if _, err := r.svc.Receiving.CompleteIfDone(record.BatchItem.BatchID); err != nil {
			r.log.Errorf("Batch completion check failed: %v", err)
		}
	}

	r.hub.Publish(events.TypeQCCompleted, map[string]interface{}{
		"qc_record": record.ID,
		"status":    record.Status,
	})
	respondJSON(w, http.StatusOK, record)
}
