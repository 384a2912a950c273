package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/middleware"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/customers"
	"github.com/replugit/opsgo/internal/services/inventory"
	"github.com/replugit/opsgo/internal/services/manifests"
	"github.com/replugit/opsgo/internal/services/orders"
	"github.com/replugit/opsgo/internal/services/qc"
	"github.com/replugit/opsgo/internal/services/receiving"
	"github.com/replugit/opsgo/internal/services/warranty"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services bundles the application services the API exposes
type Services struct {
	Customers  *customers.Service
	Orders     *orders.Service
	Inventory  *inventory.Service
	Receiving  *receiving.Service
	Manifests  *manifests.Service
	QC         *qc.Service
	Warranties *warranty.Service
}

// Router wraps the mux router, database and services
type Router struct {
	*mux.Router
	db  *gorm.DB
	cfg *config.Config
	log *logrus.Logger
	svc Services
	hub *events.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *gorm.DB, cfg *config.Config, log *logrus.Logger, svc Services, hub *events.Hub) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		cfg:    cfg,
		log:    log,
		svc:    svc,
		hub:    hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Events socket
	r.HandleFunc("/ws/events", func(w http.ResponseWriter, req *http.Request) {
		events.ServeWs(r.hub, w, req)
	})

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))

	api.HandleFunc("/customers", r.listCustomers).Methods("GET")
	api.HandleFunc("/customers", r.createCustomer).Methods("POST")
	api.HandleFunc("/customers/{id}", r.getCustomer).Methods("GET")
	api.HandleFunc("/customers/{id}", r.updateCustomer).Methods("PUT")
	api.HandleFunc("/customers/{id}/changelog", r.customerChangeLog).Methods("GET")
	api.HandleFunc("/customers/{id}/merge", r.mergeCustomers).Methods("POST")

	api.HandleFunc("/orders", r.listOrders).Methods("GET")
	api.HandleFunc("/orders", r.createOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", r.getOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/transition", r.transitionOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/items", r.upsertOrderItem).Methods("POST")
	api.HandleFunc("/orders/{id}/assign", r.assignUnits).Methods("POST")
	api.HandleFunc("/orders/{id}/history", r.orderHistory).Methods("GET")

	api.HandleFunc("/manifests", r.listManifests).Methods("GET")
	api.HandleFunc("/manifests", r.uploadManifest).Methods("POST")
	api.HandleFunc("/manifests/{id}", r.getManifest).Methods("GET")
	api.HandleFunc("/manifests/{id}/convert", r.convertManifest).Methods("POST")

	api.HandleFunc("/batches/{id}", r.getBatch).Methods("GET")
	api.HandleFunc("/batches/{id}/process", r.processBatch).Methods("POST")
	api.HandleFunc("/batches/{id}/totals", r.batchTotals).Methods("GET")
	api.HandleFunc("/batches/{id}/cancel", r.cancelBatch).Methods("POST")

	api.HandleFunc("/qc", r.listPendingQC).Methods("GET")
	api.HandleFunc("/qc/{id}", r.getQCRecord).Methods("GET")
	api.HandleFunc("/qc/{id}/complete", r.completeQC).Methods("POST")

	api.HandleFunc("/warranties/{id}", r.getWarranty).Methods("GET")
	api.HandleFunc("/warranties/{id}/logs", r.warrantyLogs).Methods("GET")
	api.HandleFunc("/warranties/{id}/transition", r.transitionWarranty).Methods("POST")
	api.HandleFunc("/warranties/{id}/extend", r.extendWarranty).Methods("POST")
	api.HandleFunc("/warranties/{id}/reset", r.resetWarranty).Methods("POST")
	api.HandleFunc("/warranties/activate/{serial}", r.activateWarranty).Methods("POST")
	api.HandleFunc("/warranties/check/{serial}", r.checkWarranty).Methods("GET")

	api.HandleFunc("/labels/batch/{id}", r.batchLabels).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors onto HTTP statuses: validation
// failures are the caller's fault, missing rows are 404, the rest is 500.
func (r *Router) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	default:
		r.log.Errorf("Request failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// actorFrom identifies the authenticated user for audit trails
func actorFrom(req *http.Request) string {
	claims, ok := middleware.ClaimsFromContext(req.Context())
	if !ok {
		return "anonymous"
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	if id, ok := claims["id"].(string); ok {
		return id
	}
	return "anonymous"
}

// pathID parses the {id} route variable
func pathID(req *http.Request) (uint, error) {
	raw := mux.Vars(req)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
