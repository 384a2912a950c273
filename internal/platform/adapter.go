package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/shopspring/decimal"
)

// ProcessedItem is one normalized order line from a marketplace payload
type ProcessedItem struct {
	SKU       string
	Name      string
	Quantity  int
	PriceData models.JSONB
}

// ProcessedOrder is a marketplace order normalized into the domain
// shapes. The raw payload rides along in PlatformSpecificData.
type ProcessedOrder struct {
	OrderNumber          string
	CustomerOrderID      string
	OrderDate            time.Time
	State                models.OrderState
	CustomerName         string
	CustomerEmail        string
	CustomerPhone        string
	ShippingAddress      models.JSONB
	PlatformSpecificData models.JSONB
	Items                []ProcessedItem
}

// ProcessedProduct is a marketplace catalog entry normalized into the
// domain product shape.
type ProcessedProduct struct {
	SKU          string
	GTIN         string
	Name         string
	ProductType  string
	Price        decimal.Decimal
	PlatformData models.JSONB
}

// ShipmentInfo carries the tracking data pushed on ship
type ShipmentInfo struct {
	Carrier        string
	TrackingNumber string
	TrackingURL    string
	ShipDate       time.Time
}

// Adapter is the only surface the core domain depends on per platform
type Adapter interface {
	Platform() models.Platform
	FetchOrders(ctx context.Context, since time.Time) ([]ProcessedOrder, error)
	AcknowledgeOrder(ctx context.Context, purchaseOrderID string) error
	ShipOrder(ctx context.Context, purchaseOrderID string, shipment ShipmentInfo) error
	CancelOrder(ctx context.Context, purchaseOrderID string, reason string) error
	GetProducts(ctx context.Context, limit int) ([]ProcessedProduct, error)
	UpdateInventory(ctx context.Context, sku string, quantity int) error
	UpdatePrice(ctx context.Context, sku string, price decimal.Decimal) error
}

// Registry holds the configured platform adapters. Built once at
// startup and injected; adapters are never registered at import time.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Platform]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Platform]Adapter)}
}

// Register adds an adapter, rejecting duplicates
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Platform()]; exists {
		return fmt.Errorf("adapter for platform %s already registered", a.Platform())
	}
	r.adapters[a.Platform()] = a
	return nil
}

// Get returns the adapter for a platform
func (r *Registry) Get(platform models.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return a, nil
}

// Platforms lists registered platforms in stable order
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
