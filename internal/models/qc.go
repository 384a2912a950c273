package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QCStatus defines quality control verdict statuses
type QCStatus string

const (
	QCStatusPending         QCStatus = "pending"
	QCStatusPassed          QCStatus = "passed"
	QCStatusFailed          QCStatus = "failed"
	QCStatusPartiallyPassed QCStatus = "partially_passed"
)

// ValidQCVerdict reports whether status is an acceptable completion verdict
func ValidQCVerdict(status QCStatus) bool {
	switch status {
	case QCStatusPassed, QCStatusFailed, QCStatusPartiallyPassed:
		return true
	}
	return false
}

// MetadataKeyPassedQuantity carries the approved quantity of a
// partially passed inspection.
const MetadataKeyPassedQuantity = "passed_quantity"

// QualityControlRecord is the pass/fail/partial gate applied to a batch
// item before its quantity becomes sellable inventory.
type QualityControlRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BatchItemID     uint      `gorm:"not null;index" json:"batch_item_id"`
	ProductFamilyID *uint     `gorm:"index" json:"product_family_id,omitempty"`
	ProductID       *uint     `gorm:"index" json:"product_id,omitempty"`
	Quantity        int       `gorm:"not null" json:"quantity"`
	LocationID      *uint     `gorm:"index" json:"location_id,omitempty"`
	Reference       string    `gorm:"type:varchar(100)" json:"reference"`
	Status          QCStatus  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Notes           string    `gorm:"type:text" json:"notes"`
	Metadata        JSONB     `gorm:"type:jsonb" json:"metadata"`

	CompletedBy *uint      `gorm:"index" json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	BatchItem     *BatchItem     `gorm:"foreignKey:BatchItemID" json:"batch_item,omitempty"`
	ProductFamily *ProductFamily `gorm:"foreignKey:ProductFamilyID" json:"product_family,omitempty"`
	Product       *Product       `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Location      *Location      `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

// TableName specifies the table name for QualityControlRecord model
func (QualityControlRecord) TableName() string {
	return "quality_control_records"
}

// BeforeCreate assigns the record UUID
func (q *QualityControlRecord) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// IsCompleted reports whether a verdict has been recorded
func (q *QualityControlRecord) IsCompleted() bool {
	return q.Status != QCStatusPending
}
