package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderState defines the order lifecycle states
type OrderState string

const (
	OrderStateCreated           OrderState = "created"
	OrderStateConfirmed         OrderState = "confirmed"
	OrderStateShipped           OrderState = "shipped"
	OrderStateDelivered         OrderState = "delivered"
	OrderStatePartiallyReturned OrderState = "partially_returned"
	OrderStateReturned          OrderState = "returned"
	OrderStateCancelled         OrderState = "cancelled"
)

// orderTransitions is the strict whitelist of allowed state changes.
// partially_returned exists for data compatibility but is not reachable
// through TransitionState.
var orderTransitions = map[OrderState][]OrderState{
	OrderStateCreated:   {OrderStateConfirmed, OrderStateCancelled},
	OrderStateConfirmed: {OrderStateShipped, OrderStateCancelled},
	OrderStateShipped:   {OrderStateDelivered, OrderStateReturned},
	OrderStateDelivered: {OrderStateReturned},
	OrderStateReturned:  {},
	OrderStateCancelled: {},
}

// Order represents a marketplace or manual order
type Order struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	OrderNumber          string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerOrderID      string          `gorm:"type:varchar(100)" json:"customer_order_id"`
	Platform             Platform        `gorm:"type:varchar(50);index" json:"platform"`
	OrderTotal           decimal.Decimal `gorm:"type:decimal(10,2)" json:"order_total"`
	OrderDate            time.Time       `gorm:"autoCreateTime;index" json:"order_date"`
	DeliveryDeadline     *time.Time      `json:"delivery_deadline,omitempty"`
	ShipDate             *time.Time      `json:"ship_date,omitempty"`
	CustomerID           uint            `gorm:"not null;index" json:"customer_id"`
	State                OrderState      `gorm:"type:varchar(20);default:'created';index" json:"state"`
	PlatformSpecificData JSONB           `gorm:"type:jsonb" json:"platform_specific_data"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Customer *Customer   `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items    []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// CanTransitionTo reports whether moving to newState is allowed
func (o *Order) CanTransitionTo(newState OrderState) bool {
	for _, allowed := range orderTransitions[o.State] {
		if allowed == newState {
			return true
		}
	}
	return false
}

// HasTrackingInfo reports whether shipment tracking data is present.
// A null or empty tracking_info entry does not count as tracked.
func (o *Order) HasTrackingInfo() bool {
	switch v := o.PlatformSpecificData["tracking_info"].(type) {
	case nil:
		return false
	case map[string]interface{}:
		return len(v) > 0
	case JSONB:
		return len(v) > 0
	case string:
		return v != ""
	default:
		return true
	}
}

// RecalculateTotal sums item totals into order_total
func (o *Order) RecalculateTotal(tx *gorm.DB) error {
	return recalculateOrderTotal(tx, o.ID)
}

func recalculateOrderTotal(tx *gorm.DB, orderID uint) error {
	var total decimal.Decimal
	row := tx.Model(&OrderItem{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(SUM(total_price), 0)").
		Row()
	if err := row.Scan(&total); err != nil {
		return fmt.Errorf("failed to sum order items: %w", err)
	}
	return tx.Model(&Order{}).Where("id = ?", orderID).
		Update("order_total", total).Error
}

// OrderItemStatus defines possible order item statuses
type OrderItemStatus string

const (
	OrderItemStatusPending  OrderItemStatus = "pending"
	OrderItemStatusAssigned OrderItemStatus = "assigned"
	OrderItemStatusShipped  OrderItemStatus = "shipped"
	OrderItemStatusReturned OrderItemStatus = "returned"
)

// OrderItem is one product line on an order. An order carries at most one
// item per product; distinct physical units hang off the item as
// ProductUnit assignments.
type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"not null;index;uniqueIndex:uniq_order_product" json:"order_id"`
	ProductID  uint            `gorm:"not null;index;uniqueIndex:uniq_order_product" json:"product_id"`
	Quantity   int             `gorm:"not null;default:1" json:"quantity"`
	Status     OrderItemStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PriceData  JSONB           `gorm:"type:jsonb" json:"price_data"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	Order   *Order   `gorm:"foreignKey:OrderID" json:"-"`
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName specifies the table name for OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeSave validates quantity and derives total_price from the
// price_data grand total. total_price is never set independently.
func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	if i.Quantity < 1 {
		return NewValidationError("order item quantity must be at least 1")
	}

	if len(i.PriceData) > 0 {
		totals := i.PriceData.GetMap("totals")
		if totals == nil {
			return NewValidationError("price_data must contain a 'totals' object")
		}
		grand, err := decimalFromJSON(totals["grand_total"])
		if err != nil {
			return NewValidationError(fmt.Sprintf("invalid price_data grand_total: %v", err))
		}
		i.TotalPrice = grand
	}
	return nil
}

// AfterSave keeps the parent order total in sync with its items
func (i *OrderItem) AfterSave(tx *gorm.DB) error {
	return recalculateOrderTotal(tx, i.OrderID)
}

// AfterDelete recomputes the parent order total after item removal
func (i *OrderItem) AfterDelete(tx *gorm.DB) error {
	return recalculateOrderTotal(tx, i.OrderID)
}

func decimalFromJSON(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("value is missing")
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// OrderStatusHistory is the append-only audit trail of order state
// changes. Default ordering is newest first; use Chronological scope for
// oldest first.
type OrderStatusHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	PreviousStatus string    `gorm:"type:varchar(50)" json:"previous_status"`
	NewStatus      string    `gorm:"type:varchar(50)" json:"new_status"`
	Reason         string    `gorm:"type:text" json:"reason"`
	ChangedBy      string    `gorm:"type:varchar(100)" json:"changed_by"`
	ChangedAt      time.Time `gorm:"autoCreateTime;index" json:"changed_at"`

	Order *Order `gorm:"foreignKey:OrderID" json:"-"`
}

// TableName specifies the table name for OrderStatusHistory model
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

// NewestFirst orders history entries most recent first (default view)
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("changed_at DESC, id DESC")
}

// Chronological orders history entries oldest first
func Chronological(db *gorm.DB) *gorm.DB {
	return db.Order("changed_at ASC, id ASC")
}
