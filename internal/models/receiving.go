package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BatchStatus defines possible receipt batch statuses
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// ReceiptBatch groups inbound stock for receiving. Aggregates
// (total_cost, total_items) are derived by summing child items on
// demand, not continuously maintained.
type ReceiptBatch struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Reference   string      `gorm:"type:varchar(100)" json:"reference"`
	ReceiptDate time.Time   `gorm:"index" json:"receipt_date"`
	LocationID  uint        `gorm:"not null;index" json:"location_id"`
	BatchCode   string      `gorm:"type:varchar(50);index" json:"batch_code"`
	Notes       string      `gorm:"type:text" json:"notes"`
	CreatedBy   *uint       `gorm:"index" json:"created_by,omitempty"`
	Status      BatchStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	ShippingTracking string `gorm:"type:varchar(100)" json:"shipping_tracking"`
	ShippingCarrier  string `gorm:"type:varchar(100)" json:"shipping_carrier"`

	SellerInfo JSONB           `gorm:"type:jsonb" json:"seller_info"`
	TotalCost  decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_cost"`
	Currency   string          `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Location *Location   `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Items    []BatchItem `gorm:"foreignKey:BatchID" json:"items,omitempty"`
}

// TableName specifies the table name for ReceiptBatch model
func (ReceiptBatch) TableName() string {
	return "receipt_batches"
}

// BeforeCreate generates a batch code (R-YYMMDD-XXXX) when absent
func (b *ReceiptBatch) BeforeCreate(tx *gorm.DB) error {
	if b.BatchCode == "" {
		datePart := time.Now().UTC().Format("060102")
		b.BatchCode = fmt.Sprintf("R-%s-%s", datePart, GenerateActivationCode(4))
	}
	if b.ReceiptDate.IsZero() {
		b.ReceiptDate = time.Now().UTC()
	}
	return nil
}

// CanBeProcessed reports whether the batch is eligible for processing
func (b *ReceiptBatch) CanBeProcessed() bool {
	return b.Status == BatchStatusPending || b.Status == BatchStatusProcessing
}

// CanBeCancelled reports whether the batch can still be cancelled
func (b *ReceiptBatch) CanBeCancelled() bool {
	return b.Status != BatchStatusCompleted && b.Status != BatchStatusCancelled
}

// BatchItemDestination defines routing after receiving
type BatchItemDestination string

const (
	DestinationInventory BatchItemDestination = "inventory"
	DestinationQC        BatchItemDestination = "qc"
	DestinationPending   BatchItemDestination = "pending"
)

// BatchItem is one received unit line within a batch. Manifest conversion
// creates exactly one batch item per manifest row with quantity 1:
// serials, specs and condition grades differ per physical unit, so
// distinct units are never aggregated into a quantity-N line.
// item_details preserves every field of the originating manifest row.
type BatchItem struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	BatchID         uint                 `gorm:"not null;index" json:"batch_id"`
	ProductFamilyID *uint                `gorm:"index" json:"product_family_id,omitempty"`
	ProductID       *uint                `gorm:"index" json:"product_id,omitempty"`
	Quantity        int                  `gorm:"not null" json:"quantity"`
	UnitCost        decimal.Decimal      `gorm:"type:decimal(10,2)" json:"unit_cost"`
	TotalCost       decimal.Decimal      `gorm:"type:decimal(10,2)" json:"total_cost"`
	Notes           string               `gorm:"type:text" json:"notes"`
	Destination     BatchItemDestination `gorm:"type:varchar(20);default:'pending'" json:"destination"`

	SkipInventoryReceipt bool `gorm:"default:false" json:"skip_inventory_receipt"`
	RequiresUnitQC       bool `gorm:"default:false" json:"requires_unit_qc"`
	CreateProductUnits   bool `gorm:"default:true" json:"create_product_units"`

	ItemDetails JSONB `gorm:"type:jsonb" json:"item_details"`

	InventoryReceiptID *uint `gorm:"index" json:"inventory_receipt_id,omitempty"`

	// Marks items handled without a receipt (skip_inventory_receipt)
	Processed bool `gorm:"default:false" json:"processed"`

	SourceType string `gorm:"type:varchar(50)" json:"source_type"`
	SourceID   string `gorm:"type:varchar(100)" json:"source_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Batch            *ReceiptBatch     `gorm:"foreignKey:BatchID" json:"-"`
	ProductFamily    *ProductFamily    `gorm:"foreignKey:ProductFamilyID" json:"product_family,omitempty"`
	Product          *Product          `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	InventoryReceipt *InventoryReceipt `gorm:"foreignKey:InventoryReceiptID" json:"inventory_receipt,omitempty"`
}

// TableName specifies the table name for BatchItem model
func (BatchItem) TableName() string {
	return "batch_items"
}

// BeforeSave derives total cost and validates the family/product pairing
func (i *BatchItem) BeforeSave(tx *gorm.DB) error {
	if i.Quantity < 1 {
		return NewValidationError("batch item quantity must be at least 1")
	}
	if i.UnitCost.IsPositive() {
		i.TotalCost = i.UnitCost.Mul(decimal.NewFromInt(int64(i.Quantity)))
	}

	if i.ProductID != nil && i.ProductFamilyID != nil {
		var product Product
		if err := tx.First(&product, *i.ProductID).Error; err != nil {
			return fmt.Errorf("failed to load batch item product: %w", err)
		}
		if product.FamilyID == nil || *product.FamilyID != *i.ProductFamilyID {
			return NewValidationError("product must belong to the specified product family")
		}
	}
	return nil
}

// IsHandled reports whether this item needs no further batch processing
func (i *BatchItem) IsHandled() bool {
	if i.SkipInventoryReceipt {
		return i.Processed
	}
	return i.InventoryReceiptID != nil
}
