package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Location is a physical warehouse location where stock is received
type Location struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Code            string    `gorm:"uniqueIndex;type:varchar(20)" json:"code"`
	Address         string    `gorm:"type:text" json:"address"`
	DefaultLocation bool      `gorm:"default:false" json:"default_location"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for Location model
func (Location) TableName() string {
	return "locations"
}

// StockLevel tracks on-hand quantity of a product at a location
type StockLevel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProductID  uint      `gorm:"not null;index;uniqueIndex:uniq_product_location" json:"product_id"`
	LocationID uint      `gorm:"not null;index;uniqueIndex:uniq_product_location" json:"location_id"`
	Quantity   int       `gorm:"default:0" json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`

	Product  *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Location *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

// TableName specifies the table name for StockLevel model
func (StockLevel) TableName() string {
	return "stock_levels"
}

// InventoryReceipt posts received quantity into sellable stock and may
// spawn serialized product units when processed. A receipt references a
// product family, a specific product, or both.
type InventoryReceipt struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ProductFamilyID *uint           `gorm:"index" json:"product_family_id,omitempty"`
	ProductID       *uint           `gorm:"index" json:"product_id,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	LocationID      *uint           `gorm:"index" json:"location_id,omitempty"`
	ReceiptDate     time.Time       `gorm:"autoCreateTime;index" json:"receipt_date"`
	Reference       string          `gorm:"type:varchar(100)" json:"reference"`
	Notes           string          `gorm:"type:text" json:"notes"`
	BatchCode       string          `gorm:"type:varchar(50)" json:"batch_code"`
	CreatedBy       *uint           `gorm:"index" json:"created_by,omitempty"`
	SellerInfo      JSONB           `gorm:"type:jsonb" json:"seller_info"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_cost"`
	TotalCost       decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_cost"`
	Currency        string          `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	ShippingTracking string `gorm:"type:varchar(100)" json:"shipping_tracking"`
	ShippingCarrier  string `gorm:"type:varchar(100)" json:"shipping_carrier"`

	RequiresUnitQC     bool `gorm:"default:false" json:"requires_unit_qc"`
	CreateProductUnits bool `gorm:"default:true" json:"create_product_units"`

	BatchID     *uint      `gorm:"index" json:"batch_id,omitempty"`
	IsProcessed bool       `gorm:"default:false;index" json:"is_processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	ProductFamily *ProductFamily `gorm:"foreignKey:ProductFamilyID" json:"product_family,omitempty"`
	Product       *Product       `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Location      *Location      `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

// TableName specifies the table name for InventoryReceipt model
func (InventoryReceipt) TableName() string {
	return "inventory_receipts"
}

// BeforeSave enforces the product reference constraint and derives total cost
func (r *InventoryReceipt) BeforeSave(tx *gorm.DB) error {
	if r.ProductFamilyID == nil && r.ProductID == nil {
		return NewValidationError("inventory receipt must reference a product or a product family")
	}
	if r.Quantity < 1 {
		return NewValidationError("inventory receipt quantity must be at least 1")
	}
	if r.UnitCost.IsPositive() {
		r.TotalCost = r.UnitCost.Mul(decimal.NewFromInt(int64(r.Quantity)))
	}
	return nil
}
