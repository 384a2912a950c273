package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/customers"
)

// listCustomers returns customers, optionally filtered by platform
func (r *Router) listCustomers(w http.ResponseWriter, req *http.Request) {
	query := r.db.Order("created_at DESC").Limit(200)
	if platform := req.URL.Query().Get("platform"); platform != "" {
		query = query.Where("platform = ?", platform)
	}

	var list []models.Customer
	if err := query.Find(&list).Error; err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateCustomerRequest is the payload for manual customer creation
type CreateCustomerRequest struct {
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	RelayEmail  string       `json:"relay_email"`
	PhoneNumber string       `json:"phone_number"`
	Platform    string       `json:"platform"`
	Address     models.JSONB `json:"address"`
}

// createCustomer creates or finds a customer by identity
func (r *Router) createCustomer(w http.ResponseWriter, req *http.Request) {
	var body CreateCustomerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	platform := models.Platform(body.Platform)
	if platform == "" {
		platform = models.PlatformManual
	}

	customer, created, err := r.svc.Customers.GetOrCreate(customers.Lookup{
		Name:        body.Name,
		Email:       body.Email,
		RelayEmail:  body.RelayEmail,
		PhoneNumber: body.PhoneNumber,
		Platform:    platform,
		Address:     body.Address,
	})
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, customer)
}

// getCustomer returns a single customer
func (r *Router) getCustomer(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer id")
		return
	}

	customer, err := r.svc.Customers.Get(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// updateCustomer applies field changes with change logging
func (r *Router) updateCustomer(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer id")
		return
	}

	var changes map[string]string
	if err := json.NewDecoder(req.Body).Decode(&changes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	customer, err := r.svc.Customers.Update(id, changes, actorFrom(req))
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// customerChangeLog returns the field change history
func (r *Router) customerChangeLog(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer id")
		return
	}

	entries, err := r.svc.Customers.ChangeLog(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// mergeCustomers folds a duplicate customer into the one in the path
func (r *Router) mergeCustomers(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer id")
		return
	}

	var body struct {
		DuplicateID uint `json:"duplicate_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	customer, err := r.svc.Customers.Merge(id, body.DuplicateID, actorFrom(req))
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}
