package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/manifests"
)

// listManifests returns manifests, newest first
func (r *Router) listManifests(w http.ResponseWriter, req *http.Request) {
	list, err := r.svc.Manifests.List(100)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// uploadManifest accepts a multipart CSV upload with header metadata
func (r *Router) uploadManifest(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(16 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing CSV file")
		return
	}
	defer file.Close()

	manifest, err := r.svc.Manifests.CreateFromCSV(file, manifests.UploadMeta{
		ManifestNumber: req.FormValue("manifest_number"),
		Reference:      req.FormValue("reference"),
		SupplierName:   req.FormValue("supplier_name"),
		TrackingNumber: req.FormValue("tracking_number"),
		Carrier:        req.FormValue("carrier"),
		FileName:       header.Filename,
		Notes:          req.FormValue("notes"),
	})
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, manifest)
}

// getManifest returns a manifest with its rows
func (r *Router) getManifest(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid manifest id")
		return
	}

	manifest, err := r.svc.Manifests.Get(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, manifest)
}

// ConvertManifestRequest names the receiving location
type ConvertManifestRequest struct {
	LocationID uint `json:"location_id"`
}

// convertManifest converts a manifest into a receipt batch. The
// response carries the created batch plus any per-row issues.
func (r *Router) convertManifest(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid manifest id")
		return
	}

	var body ConvertManifestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.LocationID == 0 {
		loc, err := r.svc.Inventory.DefaultLocation()
		if err != nil {
			respondError(w, http.StatusBadRequest, "No location given and no default location configured")
			return
		}
		body.LocationID = loc.ID
	}

	batch, issues, err := r.svc.Receiving.CreateBatchFromManifest(id, body.LocationID, nil)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	r.hub.Publish(events.TypeManifestConverted, map[string]interface{}{
		"manifest_id": id,
		"batch_id":    batch.ID,
		"issues":      len(issues),
	})
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"batch":  batch,
		"issues": issues,
	})
}

// getBatch returns a batch with its items
func (r *Router) getBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	batch, err := r.svc.Receiving.GetBatch(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// processBatch routes every unhandled batch item
func (r *Router) processBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	batch, err := r.svc.Receiving.ProcessBatch(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	if batch.Status == models.BatchStatusCompleted {
		r.hub.Publish(events.TypeBatchCompleted, map[string]interface{}{
			"batch_id":   batch.ID,
			"batch_code": batch.BatchCode,
		})
	}
	respondJSON(w, http.StatusOK, batch)
}

// batchTotals sums batch items on demand
func (r *Router) batchTotals(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	totals, err := r.svc.Receiving.CalculateTotals(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// cancelBatch cancels a pending or processing batch
func (r *Router) cancelBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	batch, err := r.svc.Receiving.CancelBatch(id, body.Reason)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}
