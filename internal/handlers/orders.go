package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/replugit/opsgo/internal/events"
	"github.com/replugit/opsgo/internal/models"
)

// listOrders returns orders filtered by optional state and platform
func (r *Router) listOrders(w http.ResponseWriter, req *http.Request) {
	state := models.OrderState(req.URL.Query().Get("state"))
	platform := models.Platform(req.URL.Query().Get("platform"))

	list, err := r.svc.Orders.List(state, platform, 200)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateOrderRequest is the payload for manual order creation
type CreateOrderRequest struct {
	OrderNumber          string       `json:"order_number"`
	CustomerID           uint         `json:"customer_id"`
	Platform             string       `json:"platform"`
	PlatformSpecificData models.JSONB `json:"platform_specific_data"`
}

// createOrder stores a new manual order
func (r *Router) createOrder(w http.ResponseWriter, req *http.Request) {
	var body CreateOrderRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	platform := models.Platform(body.Platform)
	if platform == "" {
		platform = models.PlatformManual
	}

	order := models.Order{
		OrderNumber:          body.OrderNumber,
		CustomerID:           body.CustomerID,
		Platform:             platform,
		PlatformSpecificData: body.PlatformSpecificData,
	}
	if err := r.svc.Orders.Create(&order); err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// getOrder returns a single order with its items
func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := r.svc.Orders.Get(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// TransitionRequest asks for an order state change
type TransitionRequest struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// transitionOrder moves an order through its state machine
func (r *Router) transitionOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body TransitionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	order, err := r.svc.Orders.TransitionState(id, models.OrderState(body.State), body.Reason, actorFrom(req))
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	r.hub.Publish(events.TypeOrderStateChanged, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"state":        order.State,
	})
	respondJSON(w, http.StatusOK, order)
}

// UpsertItemRequest adds or updates an order line
type UpsertItemRequest struct {
	ProductID uint         `json:"product_id"`
	Quantity  int          `json:"quantity"`
	PriceData models.JSONB `json:"price_data"`
}

// upsertOrderItem adds or updates the line for a product
func (r *Router) upsertOrderItem(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body UpsertItemRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	item, err := r.svc.Orders.UpsertItem(id, body.ProductID, body.Quantity, body.PriceData)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// AssignUnitsRequest attaches serialized units to an order item
type AssignUnitsRequest struct {
	OrderItemID uint   `json:"order_item_id"`
	UnitIDs     []uint `json:"unit_ids"`
}

// assignUnits attaches in-stock units to an order item
func (r *Router) assignUnits(w http.ResponseWriter, req *http.Request) {
	if _, err := pathID(req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body AssignUnitsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := r.svc.Orders.AssignUnits(body.OrderItemID, body.UnitIDs, actorFrom(req)); err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// orderHistory returns the status history, newest first
func (r *Router) orderHistory(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	entries, err := r.svc.Orders.History(id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
