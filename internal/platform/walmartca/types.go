package walmartca

// Wire shapes of the Walmart Marketplace v3 CA endpoints. Only the
// fields the processors read are declared; everything else passes
// through untouched.

// OrdersResponse is the paged order list payload
type OrdersResponse struct {
	List struct {
		Meta struct {
			TotalCount int    `json:"totalCount"`
			NextCursor string `json:"nextCursor"`
		} `json:"meta"`
		Elements struct {
			Order []WalmartOrder `json:"order"`
		} `json:"elements"`
	} `json:"list"`
}

// WalmartOrder is one raw marketplace order
type WalmartOrder struct {
	PurchaseOrderID string `json:"purchaseOrderId"`
	CustomerOrderID string `json:"customerOrderId"`
	CustomerEmailID string `json:"customerEmailId"`
	OrderDate       int64  `json:"orderDate"` // epoch millis
	ShippingInfo    struct {
		Phone                 string `json:"phone"`
		EstimatedDeliveryDate int64  `json:"estimatedDeliveryDate"`
		EstimatedShipDate     int64  `json:"estimatedShipDate"`
		MethodCode            string `json:"methodCode"`
		PostalAddress         struct {
			Name        string `json:"name"`
			Address1    string `json:"address1"`
			Address2    string `json:"address2"`
			City        string `json:"city"`
			State       string `json:"state"`
			PostalCode  string `json:"postalCode"`
			Country     string `json:"country"`
			AddressType string `json:"addressType"`
		} `json:"postalAddress"`
	} `json:"shippingInfo"`
	OrderLines struct {
		OrderLine []WalmartOrderLine `json:"orderLine"`
	} `json:"orderLines"`
}

// WalmartOrderLine is one raw order line
type WalmartOrderLine struct {
	LineNumber string `json:"lineNumber"`
	Item       struct {
		ProductName string `json:"productName"`
		SKU         string `json:"sku"`
	} `json:"item"`
	Charges struct {
		Charge []WalmartCharge `json:"charge"`
	} `json:"charges"`
	OrderLineQuantity struct {
		UnitOfMeasurement string `json:"unitOfMeasurement"`
		Amount            string `json:"amount"`
	} `json:"orderLineQuantity"`
	OrderLineStatuses struct {
		OrderLineStatus []struct {
			Status string `json:"status"`
		} `json:"orderLineStatus"`
	} `json:"orderLineStatuses"`
	TrackingInfo *struct {
		TrackingNumber string `json:"trackingNumber"`
		TrackingURL    string `json:"trackingURL"`
		CarrierName    struct {
			Carrier string `json:"carrier"`
		} `json:"carrierName"`
	} `json:"trackingInfo,omitempty"`
}

// WalmartCharge is one price component on an order line
type WalmartCharge struct {
	ChargeType   string `json:"chargeType"`
	ChargeName   string `json:"chargeName"`
	ChargeAmount struct {
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
	} `json:"chargeAmount"`
	Tax *struct {
		TaxName   string `json:"taxName"`
		TaxAmount struct {
			Currency string  `json:"currency"`
			Amount   float64 `json:"amount"`
		} `json:"taxAmount"`
	} `json:"tax,omitempty"`
}

// ItemsResponse is the paged catalog payload
type ItemsResponse struct {
	ItemResponse []WalmartItem `json:"ItemResponse"`
	TotalItems   int           `json:"totalItems"`
	NextCursor   string        `json:"nextCursor"`
}

// WalmartItem is one raw catalog entry
type WalmartItem struct {
	SKU         string `json:"sku"`
	WPID        string `json:"wpid"`
	GTIN        string `json:"gtin"`
	ProductName string `json:"productName"`
	ProductType string `json:"productType"`
	Price       struct {
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
	} `json:"price"`
	PublishedStatus string `json:"publishedStatus"`
}
