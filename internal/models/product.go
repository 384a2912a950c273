package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// ProductFamily groups product variants sharing a base specification
type ProductFamily struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SKU         string    `gorm:"uniqueIndex;not null" json:"sku"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for ProductFamily model
func (ProductFamily) TableName() string {
	return "product_families"
}

// Product represents a sellable product variant
type Product struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	SKU          *string   `gorm:"index" json:"sku,omitempty"`
	GTIN         *string   `gorm:"uniqueIndex;type:varchar(14)" json:"gtin,omitempty"`
	ProductType  string    `gorm:"type:varchar(100)" json:"product_type"`
	Description  string    `gorm:"type:text" json:"description"`
	Platform     Platform  `gorm:"type:varchar(50)" json:"platform"`
	PlatformData JSONB     `gorm:"type:jsonb" json:"platform_data"`
	FamilyID     *uint     `gorm:"index" json:"family_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Family *ProductFamily `gorm:"foreignKey:FamilyID" json:"family,omitempty"`
	Units  []ProductUnit  `gorm:"foreignKey:ProductID" json:"units,omitempty"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string {
	return "products"
}

// BeforeSave validates per-platform entries in platform_data
func (p *Product) BeforeSave(tx *gorm.DB) error {
	for platform, data := range p.PlatformData {
		entry, ok := data.(map[string]interface{})
		if !ok {
			return NewValidationError("platform '" + platform + "' data must be an object")
		}
		if platform == string(PlatformWalmartCA) {
			if _, ok := entry["wpid"]; !ok {
				return NewValidationError("walmart_ca data must include 'wpid'")
			}
		}
	}
	return nil
}

// UnitStatus defines possible product unit statuses
type UnitStatus string

const (
	UnitStatusInStock   UnitStatus = "in_stock"
	UnitStatusAssigned  UnitStatus = "assigned"
	UnitStatusSold      UnitStatus = "sold"
	UnitStatusReturned  UnitStatus = "returned"
	UnitStatusDefective UnitStatus = "defective"
)

// ProductUnit is one serialized, individually tracked physical item.
// A unit is assigned to at most one order item at a time.
type ProductUnit struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ProductID          uint       `gorm:"not null;index" json:"product_id"`
	SerialNumber       *string    `gorm:"uniqueIndex" json:"serial_number,omitempty"`
	ManufacturerSerial *string    `gorm:"uniqueIndex" json:"manufacturer_serial,omitempty"`
	Status             UnitStatus `gorm:"type:varchar(50);default:'in_stock';index" json:"status"`
	IsSerialized       bool       `gorm:"default:true" json:"is_serialized"`
	ActivationCode     string     `gorm:"type:varchar(4);index" json:"activation_code"`
	OrderItemID        *uint      `gorm:"index" json:"order_item_id,omitempty"`
	Metadata           JSONB      `gorm:"type:jsonb" json:"metadata"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Product   *Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	OrderItem *OrderItem `gorm:"foreignKey:OrderItemID" json:"-"`
}

// TableName specifies the table name for ProductUnit model
func (ProductUnit) TableName() string {
	return "product_units"
}

// BeforeCreate generates the activation code used for warranty registration
func (u *ProductUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ActivationCode == "" {
		u.ActivationCode = GenerateActivationCode(4)
	}
	return nil
}

// Unassign releases the unit back to available stock, clearing the
// assignment link. Called when an order transitions to returned.
func (u *ProductUnit) Unassign(tx *gorm.DB) error {
	history := ProductUnitAssignmentHistory{
		ProductUnitID: u.ID,
		OrderItemID:   u.OrderItemID,
		Action:        AssignmentActionReturned,
	}

	if err := tx.Model(u).Select("order_item_id", "status").Updates(map[string]interface{}{
		"order_item_id": nil,
		"status":        UnitStatusInStock,
	}).Error; err != nil {
		return err
	}
	u.OrderItemID = nil
	u.Status = UnitStatusInStock
	return tx.Create(&history).Error
}

const activationCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateActivationCode creates a short alphanumeric code
func GenerateActivationCode(length int) string {
	result := make([]byte, length)
	max := big.NewInt(int64(len(activationCharset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			result[i] = activationCharset[0]
			continue
		}
		result[i] = activationCharset[n.Int64()]
	}
	return string(result)
}

// AssignmentAction defines product unit assignment history actions
type AssignmentAction string

const (
	AssignmentActionAssigned   AssignmentAction = "assigned"
	AssignmentActionReturned   AssignmentAction = "returned"
	AssignmentActionReassigned AssignmentAction = "reassigned"
)

// ProductUnitAssignmentHistory is the audit trail of unit assignments
type ProductUnitAssignmentHistory struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	ProductUnitID uint             `gorm:"not null;index" json:"product_unit_id"`
	OrderItemID   *uint            `gorm:"index" json:"order_item_id,omitempty"`
	Action        AssignmentAction `gorm:"type:varchar(20);not null" json:"action"`
	Comments      string           `gorm:"type:text" json:"comments"`
	Timestamp     time.Time        `gorm:"autoCreateTime" json:"timestamp"`

	ProductUnit *ProductUnit `gorm:"foreignKey:ProductUnitID" json:"-"`
}

// TableName specifies the table name for ProductUnitAssignmentHistory model
func (ProductUnitAssignmentHistory) TableName() string {
	return "product_unit_assignment_history"
}
