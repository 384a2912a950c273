package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WarrantyStatus defines warranty lifecycle states
type WarrantyStatus string

const (
	WarrantyStatusNotRegistered WarrantyStatus = "not_registered"
	WarrantyStatusActive        WarrantyStatus = "active"
	WarrantyStatusExpired       WarrantyStatus = "expired"
	WarrantyStatusVoid          WarrantyStatus = "void"
)

var warrantyTransitions = map[WarrantyStatus][]WarrantyStatus{
	WarrantyStatusNotRegistered: {WarrantyStatusActive, WarrantyStatusVoid},
	WarrantyStatusActive:        {WarrantyStatusExpired, WarrantyStatusVoid},
	WarrantyStatusExpired:       {WarrantyStatusVoid},
	WarrantyStatusVoid:          {},
}

// warrantyMonthDays is the day length of one warranty month. Expiration
// is always derived fresh from purchase_date, never appended to.
const warrantyMonthDays = 30

// Warranty is coverage tied 1:1 to a product unit, with its own
// lifecycle independent of the order.
type Warranty struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ProductUnitID uint       `gorm:"uniqueIndex;not null" json:"product_unit_id"`
	CustomerID    *uint      `gorm:"index" json:"customer_id,omitempty"`
	OrderID       *uint      `gorm:"index" json:"order_id,omitempty"`
	PurchaseDate  time.Time  `gorm:"not null" json:"purchase_date"`

	// Periods are in months
	WarrantyPeriod int  `gorm:"default:3" json:"warranty_period"`
	ExtendedPeriod int  `gorm:"default:0" json:"extended_period"`
	MaxExtensions  int  `gorm:"default:2" json:"max_extensions"`
	IsExtended     bool `gorm:"default:false" json:"is_extended"`

	WarrantyExpirationDate *time.Time     `json:"warranty_expiration_date,omitempty"`
	Status                 WarrantyStatus `gorm:"type:varchar(20);default:'not_registered';index" json:"status"`
	Comments               string         `gorm:"type:text" json:"comments"`
	RegisteredAt           *time.Time     `json:"registered_at,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	LastUpdated            time.Time      `gorm:"autoUpdateTime" json:"last_updated"`

	ProductUnit *ProductUnit `gorm:"foreignKey:ProductUnitID" json:"product_unit,omitempty"`
	Customer    *Customer    `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Order       *Order       `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}

// TableName specifies the table name for Warranty model
func (Warranty) TableName() string {
	return "warranties"
}

// BeforeSave derives the expiration date and registration timestamp
func (w *Warranty) BeforeSave(tx *gorm.DB) error {
	if w.PurchaseDate.IsZero() {
		return NewValidationError("purchase date must be set before saving the warranty")
	}
	if w.WarrantyExpirationDate == nil {
		exp := w.ComputeExpiration()
		w.WarrantyExpirationDate = &exp
	}
	if w.Status == WarrantyStatusActive && w.RegisteredAt == nil {
		now := time.Now().UTC()
		w.RegisteredAt = &now
	}
	return nil
}

// ComputeExpiration derives the expiration date from the purchase date
// and the cumulative warranty period
func (w *Warranty) ComputeExpiration() time.Time {
	days := warrantyMonthDays * (w.WarrantyPeriod + w.ExtendedPeriod)
	return w.PurchaseDate.AddDate(0, 0, days)
}

// CanTransitionTo reports whether a status transition is allowed
func (w *Warranty) CanTransitionTo(newStatus WarrantyStatus) bool {
	for _, allowed := range warrantyTransitions[w.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// IsExpired reports whether the expiration date has passed
func (w *Warranty) IsExpired() bool {
	if w.WarrantyExpirationDate == nil {
		return false
	}
	return time.Now().UTC().After(*w.WarrantyExpirationDate)
}

// WarrantyLogAction defines warranty audit log actions
type WarrantyLogAction string

const (
	WarrantyLogCreated      WarrantyLogAction = "created"
	WarrantyLogActivated    WarrantyLogAction = "activated"
	WarrantyLogStatusChange WarrantyLogAction = "status_change"
	WarrantyLogExtended     WarrantyLogAction = "extended"
	WarrantyLogReset        WarrantyLogAction = "reset"
	WarrantyLogAdminEdit    WarrantyLogAction = "admin_edit"
)

// WarrantyLog is the append-only audit trail of warranty changes.
// Entries are never edited or deleted.
type WarrantyLog struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	WarrantyID  uint              `gorm:"not null;index" json:"warranty_id"`
	Action      WarrantyLogAction `gorm:"type:varchar(30);not null" json:"action"`
	Before      datatypes.JSON    `json:"before"`
	After       datatypes.JSON    `json:"after"`
	Reason      string            `gorm:"type:text" json:"reason"`
	PerformedBy string            `gorm:"type:varchar(100)" json:"performed_by"`
	Timestamp   time.Time         `gorm:"autoCreateTime;index" json:"timestamp"`

	Warranty *Warranty `gorm:"foreignKey:WarrantyID" json:"-"`
}

// TableName specifies the table name for WarrantyLog model
func (WarrantyLog) TableName() string {
	return "warranty_logs"
}

// BeforeCreate assigns the log entry UUID
func (l *WarrantyLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
