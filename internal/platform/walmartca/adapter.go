package walmartca

import (
	"context"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/platform"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Adapter implements platform.Adapter for Walmart Canada
type Adapter struct {
	client *Client
	log    *logrus.Logger
}

// NewAdapter creates a Walmart CA adapter
func NewAdapter(cfg Config, log *logrus.Logger) *Adapter {
	return &Adapter{
		client: NewClient(cfg, log),
		log:    log,
	}
}

// Platform identifies this adapter's sales channel
func (a *Adapter) Platform() models.Platform {
	return models.PlatformWalmartCA
}

// FetchOrders pulls and normalizes orders created after since
func (a *Adapter) FetchOrders(ctx context.Context, since time.Time) ([]platform.ProcessedOrder, error) {
	resp, err := a.client.GetOrders(ctx, since, 200)
	if err != nil {
		return nil, err
	}

	orders := make([]platform.ProcessedOrder, 0, len(resp.List.Elements.Order))
	for i := range resp.List.Elements.Order {
		orders = append(orders, ProcessOrder(&resp.List.Elements.Order[i]))
	}
	return orders, nil
}

// AcknowledgeOrder confirms receipt of a purchase order
func (a *Adapter) AcknowledgeOrder(ctx context.Context, purchaseOrderID string) error {
	return a.client.AcknowledgeOrder(ctx, purchaseOrderID)
}

// ShipOrder pushes shipment tracking upstream
func (a *Adapter) ShipOrder(ctx context.Context, purchaseOrderID string, shipment platform.ShipmentInfo) error {
	payload := map[string]interface{}{
		"orderShipment": map[string]interface{}{
			"orderLines": map[string]interface{}{
				"orderLine": []map[string]interface{}{
					{
						"orderLineStatuses": map[string]interface{}{
							"orderLineStatus": []map[string]interface{}{
								{
									"status": "Shipped",
									"trackingInfo": map[string]interface{}{
										"shipDateTime":   shipment.ShipDate.UnixMilli(),
										"carrierName":    map[string]string{"carrier": shipment.Carrier},
										"trackingNumber": shipment.TrackingNumber,
										"trackingURL":    shipment.TrackingURL,
									},
								},
							},
						},
					},
				},
			},
		},
	}
	return a.client.ShipOrder(ctx, purchaseOrderID, payload)
}

// CancelOrder cancels a purchase order upstream
func (a *Adapter) CancelOrder(ctx context.Context, purchaseOrderID, reason string) error {
	payload := map[string]interface{}{
		"orderCancellation": map[string]interface{}{
			"orderLines": map[string]interface{}{
				"orderLine": []map[string]interface{}{
					{
						"orderLineStatuses": map[string]interface{}{
							"orderLineStatus": []map[string]interface{}{
								{
									"status":             "Cancelled",
									"cancellationReason": reason,
								},
							},
						},
					},
				},
			},
		},
	}
	return a.client.CancelOrder(ctx, purchaseOrderID, payload)
}

// GetProducts pulls and normalizes the seller catalog
func (a *Adapter) GetProducts(ctx context.Context, limit int) ([]platform.ProcessedProduct, error) {
	resp, err := a.client.GetItems(ctx, limit)
	if err != nil {
		return nil, err
	}

	products := make([]platform.ProcessedProduct, 0, len(resp.ItemResponse))
	for i := range resp.ItemResponse {
		products = append(products, ProcessItem(&resp.ItemResponse[i]))
	}
	return products, nil
}

// UpdateInventory pushes an on-hand quantity for a SKU
func (a *Adapter) UpdateInventory(ctx context.Context, sku string, quantity int) error {
	return a.client.UpdateInventory(ctx, sku, quantity)
}

// UpdatePrice pushes a price for a SKU
func (a *Adapter) UpdatePrice(ctx context.Context, sku string, price decimal.Decimal) error {
	return a.client.UpdatePrice(ctx, sku, "CAD", price.StringFixed(2))
}
