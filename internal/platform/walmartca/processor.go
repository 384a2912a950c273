package walmartca

import (
	"strconv"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/platform"
	"github.com/shopspring/decimal"
)

// walmartStates maps Walmart order line statuses onto domain states.
// An order's state is the state of its least-advanced line.
var walmartStates = map[string]models.OrderState{
	"Created":      models.OrderStateCreated,
	"Acknowledged": models.OrderStateConfirmed,
	"Shipped":      models.OrderStateShipped,
	"Delivered":    models.OrderStateDelivered,
	"Cancelled":    models.OrderStateCancelled,
}

// stateRank orders domain states by lifecycle progress
var stateRank = map[models.OrderState]int{
	models.OrderStateCreated:   0,
	models.OrderStateConfirmed: 1,
	models.OrderStateShipped:   2,
	models.OrderStateDelivered: 3,
	models.OrderStateCancelled: 4,
}

// ProcessOrder normalizes one raw Walmart order into the domain shape
func ProcessOrder(raw *WalmartOrder) platform.ProcessedOrder {
	order := platform.ProcessedOrder{
		OrderNumber:     raw.PurchaseOrderID,
		CustomerOrderID: raw.CustomerOrderID,
		OrderDate:       time.UnixMilli(raw.OrderDate).UTC(),
		State:           models.OrderStateCreated,
		CustomerName:    raw.ShippingInfo.PostalAddress.Name,
		CustomerEmail:   raw.CustomerEmailID,
		CustomerPhone:   raw.ShippingInfo.Phone,
		ShippingAddress: models.JSONB{
			"name":       raw.ShippingInfo.PostalAddress.Name,
			"address1":   raw.ShippingInfo.PostalAddress.Address1,
			"address2":   raw.ShippingInfo.PostalAddress.Address2,
			"city":       raw.ShippingInfo.PostalAddress.City,
			"state":      raw.ShippingInfo.PostalAddress.State,
			"postalCode": raw.ShippingInfo.PostalAddress.PostalCode,
			"country":    raw.ShippingInfo.PostalAddress.Country,
		},
		PlatformSpecificData: models.JSONB{
			"purchase_order_id": raw.PurchaseOrderID,
			"customer_order_id": raw.CustomerOrderID,
			"method_code":       raw.ShippingInfo.MethodCode,
		},
	}
	if raw.ShippingInfo.EstimatedDeliveryDate > 0 {
		order.PlatformSpecificData["estimated_delivery_date"] =
			time.UnixMilli(raw.ShippingInfo.EstimatedDeliveryDate).UTC().Format(time.RFC3339)
	}

	lineState := models.OrderState("")
	for i := range raw.OrderLines.OrderLine {
		line := &raw.OrderLines.OrderLine[i]
		order.Items = append(order.Items, processLine(line))

		if state, ok := lineStatus(line); ok {
			if lineState == "" || stateRank[state] < stateRank[lineState] {
				lineState = state
			}
		}
		if line.TrackingInfo != nil {
			order.PlatformSpecificData["tracking_info"] = models.JSONB{
				"tracking_number": line.TrackingInfo.TrackingNumber,
				"tracking_url":    line.TrackingInfo.TrackingURL,
				"carrier":         line.TrackingInfo.CarrierName.Carrier,
			}
		}
	}
	if lineState != "" {
		order.State = lineState
	}
	return order
}

// lineStatus maps the first status of a line onto a domain state
func lineStatus(line *WalmartOrderLine) (models.OrderState, bool) {
	if len(line.OrderLineStatuses.OrderLineStatus) == 0 {
		return "", false
	}
	state, ok := walmartStates[line.OrderLineStatuses.OrderLineStatus[0].Status]
	return state, ok
}

// processLine normalizes charges into the nested price_data shape the
// order item derives total_price from.
func processLine(line *WalmartOrderLine) platform.ProcessedItem {
	quantity := 1
	if n, err := strconv.Atoi(line.OrderLineQuantity.Amount); err == nil && n > 0 {
		quantity = n
	}

	product := decimal.Zero
	shipping := decimal.Zero
	tax := decimal.Zero
	currency := ""

	for _, charge := range line.Charges.Charge {
		amount := decimal.NewFromFloat(charge.ChargeAmount.Amount)
		if currency == "" {
			currency = charge.ChargeAmount.Currency
		}
		switch charge.ChargeType {
		case "PRODUCT":
			product = product.Add(amount)
		case "SHIPPING":
			shipping = shipping.Add(amount)
		default:
			product = product.Add(amount)
		}
		if charge.Tax != nil {
			tax = tax.Add(decimal.NewFromFloat(charge.Tax.TaxAmount.Amount))
		}
	}

	grand := product.Add(shipping).Add(tax)
	return platform.ProcessedItem{
		SKU:      line.Item.SKU,
		Name:     line.Item.ProductName,
		Quantity: quantity,
		PriceData: models.JSONB{
			"currency":    currency,
			"line_number": line.LineNumber,
			"totals": map[string]interface{}{
				"product":     product.String(),
				"shipping":    shipping.String(),
				"tax":         tax.String(),
				"grand_total": grand.String(),
			},
		},
	}
}

// ProcessItem normalizes one raw catalog entry
func ProcessItem(raw *WalmartItem) platform.ProcessedProduct {
	return platform.ProcessedProduct{
		SKU:         raw.SKU,
		GTIN:        raw.GTIN,
		Name:        raw.ProductName,
		ProductType: raw.ProductType,
		Price:       decimal.NewFromFloat(raw.Price.Amount),
		PlatformData: models.JSONB{
			string(models.PlatformWalmartCA): map[string]interface{}{
				"wpid":             raw.WPID,
				"published_status": raw.PublishedStatus,
				"currency":         raw.Price.Currency,
			},
		},
	}
}
