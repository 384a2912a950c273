package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Platform identifies the sales channel a record originates from
type Platform string

const (
	PlatformWalmartCA Platform = "walmart_ca"
	PlatformWalmartUS Platform = "walmart_us"
	PlatformAmazon    Platform = "amazon"
	PlatformShopify   Platform = "shopify"
	PlatformBestBuy   Platform = "bestbuy"
	PlatformManual    Platform = "manual"
)

// addressRequiredKeys are the keys every stored address object must carry
var addressRequiredKeys = []string{"name", "address1", "city", "state", "postalCode", "country"}

// Customer is a deduplicated buyer identity across sales channels.
// Contact columns are nullable so marketplace relay identities (email
// only) and phone-only walk-ins both fit; unique indexes still hold
// because NULLs do not collide.
type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Email       *string   `gorm:"uniqueIndex;type:varchar(255)" json:"email,omitempty"`
	RelayEmail  *string   `gorm:"uniqueIndex;type:varchar(255)" json:"relay_email,omitempty"`
	PhoneNumber *string   `gorm:"uniqueIndex;type:varchar(30)" json:"phone_number,omitempty"`
	Platform    Platform  `gorm:"type:varchar(50);index" json:"platform"`
	Tags        JSONB     `gorm:"type:jsonb" json:"tags"`
	Address     JSONB     `gorm:"type:jsonb" json:"address"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Customer model
func (Customer) TableName() string {
	return "customers"
}

// BeforeSave validates contact presence and address shape
func (c *Customer) BeforeSave(tx *gorm.DB) error {
	if !hasValue(c.Email) && !hasValue(c.RelayEmail) && !hasValue(c.PhoneNumber) {
		return NewValidationError("customer must have at least one of email, relay email or phone number")
	}

	if len(c.Address) > 0 {
		var missing []string
		for _, key := range addressRequiredKeys {
			if c.Address.GetString(key) == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return NewValidationError(fmt.Sprintf("address is missing required fields: %s", strings.Join(missing, ", ")))
		}
	}
	return nil
}

// DisplayName returns the best available human-readable identifier
func (c *Customer) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if hasValue(c.Email) {
		return *c.Email
	}
	if hasValue(c.RelayEmail) {
		return *c.RelayEmail
	}
	if hasValue(c.PhoneNumber) {
		return *c.PhoneNumber
	}
	return fmt.Sprintf("customer #%d", c.ID)
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CustomerChangeLog records one field change on a customer profile
type CustomerChangeLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`
	FieldName  string    `gorm:"type:varchar(50);not null" json:"field_name"`
	OldValue   string    `gorm:"type:text" json:"old_value"`
	NewValue   string    `gorm:"type:text" json:"new_value"`
	UpdatedBy  string    `gorm:"type:varchar(100)" json:"updated_by"`
	UpdatedAt  time.Time `gorm:"autoCreateTime;index" json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"-"`
}

// TableName specifies the table name for CustomerChangeLog model
func (CustomerChangeLog) TableName() string {
	return "customer_change_logs"
}
