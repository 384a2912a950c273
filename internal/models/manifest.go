package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ManifestStatus defines manifest processing statuses
type ManifestStatus string

const (
	ManifestStatusUploaded   ManifestStatus = "uploaded"
	ManifestStatusParsed     ManifestStatus = "parsed"
	ManifestStatusProcessing ManifestStatus = "processing"
	ManifestStatusReceived   ManifestStatus = "received"
	ManifestStatusCancelled  ManifestStatus = "cancelled"
	ManifestStatusFailed     ManifestStatus = "failed"
)

// Manifest is an uploaded list of incoming inventory line items from a
// source (e.g. a liquidation list) prior to receiving.
type Manifest struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ManifestNumber string         `gorm:"uniqueIndex;not null" json:"manifest_number"`
	Reference      string         `gorm:"type:varchar(100)" json:"reference"`
	SupplierName   string         `gorm:"type:varchar(255)" json:"supplier_name"`
	TrackingNumber string         `gorm:"type:varchar(100)" json:"tracking_number"`
	Carrier        string         `gorm:"type:varchar(100)" json:"carrier"`
	FileName       string         `gorm:"type:varchar(255)" json:"file_name"`
	Date           *time.Time     `json:"date,omitempty"`
	Notes          string         `gorm:"type:text" json:"notes"`
	Status         ManifestStatus `gorm:"type:varchar(20);default:'uploaded';index" json:"status"`
	UploadedBy     *uint          `gorm:"index" json:"uploaded_by,omitempty"`
	ReceiptBatchID *uint          `gorm:"index" json:"receipt_batch_id,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Items []ManifestItem `gorm:"foreignKey:ManifestID" json:"items,omitempty"`
}

// TableName specifies the table name for Manifest model
func (Manifest) TableName() string {
	return "manifests"
}

// ManifestItemStatus defines per-row processing statuses
type ManifestItemStatus string

const (
	ManifestItemStatusPending   ManifestItemStatus = "pending"
	ManifestItemStatusMapped    ManifestItemStatus = "mapped"
	ManifestItemStatusValidated ManifestItemStatus = "validated"
	ManifestItemStatusError     ManifestItemStatus = "error"
	ManifestItemStatusProcessed ManifestItemStatus = "processed"
)

// ManifestItem is one row from a manifest file. Equipment columns are
// lifted out of raw_data for querying; raw_data keeps the full original
// row untouched.
type ManifestItem struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ManifestID uint           `gorm:"not null;index;uniqueIndex:uniq_manifest_row" json:"manifest_id"`
	RowNumber  int            `gorm:"not null;uniqueIndex:uniq_manifest_row" json:"row_number"`
	RawData    datatypes.JSON `json:"raw_data"`

	Barcode        string          `gorm:"type:varchar(50)" json:"barcode"`
	Serial         string          `gorm:"type:varchar(50);index" json:"serial"`
	Manufacturer   string          `gorm:"type:varchar(100)" json:"manufacturer"`
	Model          string          `gorm:"type:varchar(255)" json:"model"`
	Processor      string          `gorm:"type:varchar(255)" json:"processor"`
	Memory         string          `gorm:"type:varchar(50)" json:"memory"`
	Storage        string          `gorm:"type:varchar(100)" json:"storage"`
	HasBattery     bool            `gorm:"default:false" json:"has_battery"`
	Battery        string          `gorm:"type:varchar(100)" json:"battery"`
	ConditionGrade string          `gorm:"type:varchar(10)" json:"condition_grade"`
	ConditionNotes string          `gorm:"type:text" json:"condition_notes"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	Quantity       int             `gorm:"default:1" json:"quantity"`

	SKU       string `gorm:"type:varchar(100);index" json:"sku"`
	FamilySKU string `gorm:"type:varchar(100);index" json:"family_sku"`

	ProductID       *uint `gorm:"index" json:"product_id,omitempty"`
	ProductFamilyID *uint `gorm:"index" json:"product_family_id,omitempty"`

	// Fallback family mapping resolved by a mapped group of similar rows
	MappedFamilyID *uint `gorm:"index" json:"mapped_family_id,omitempty"`

	Status       ManifestItemStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ErrorMessage string             `gorm:"type:text" json:"error_message"`
	BatchItemID  *uint              `gorm:"index" json:"batch_item_id,omitempty"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
	Notes        string             `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time          `json:"created_at"`

	Manifest      *Manifest      `gorm:"foreignKey:ManifestID" json:"-"`
	Product       *Product       `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ProductFamily *ProductFamily `gorm:"foreignKey:ProductFamilyID" json:"product_family,omitempty"`
	MappedFamily  *ProductFamily `gorm:"foreignKey:MappedFamilyID" json:"mapped_family,omitempty"`
}

// TableName specifies the table name for ManifestItem model
func (ManifestItem) TableName() string {
	return "manifest_items"
}
