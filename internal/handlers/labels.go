package handlers

import (
	"net/http"

	"github.com/replugit/opsgo/internal/labels"
	"github.com/replugit/opsgo/internal/models"
	"gorm.io/datatypes"
)

// batchLabels renders a printable PDF of unit labels for every unit
// spawned by a batch's receipts.
func (r *Router) batchLabels(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	var batch models.ReceiptBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		r.respondServiceError(w, err)
		return
	}

	// Units carry their origin batch code in metadata
	var units []models.ProductUnit
	err = r.db.Preload("Product").
		Where(datatypes.JSONQuery("metadata").Equals(batch.BatchCode, "batch_code")).
		Find(&units).Error
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	if len(units) == 0 {
		respondError(w, http.StatusNotFound, "no units generated for this batch yet")
		return
	}

	pdf, err := labels.GeneratePDF(labels.ForUnits(units), labels.DefaultLayout, "")
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=batch-labels.pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
