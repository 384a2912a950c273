package customers

import (
	"errors"
	"fmt"

	"github.com/replugit/opsgo/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service manages the deduplicated customer registry
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new customer service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// Lookup describes the identity fields used to find an existing customer.
// Matching checks phone first, then email, then relay email.
type Lookup struct {
	Name        string
	Email       string
	RelayEmail  string
	PhoneNumber string
	Platform    models.Platform
	Address     models.JSONB
}

// GetOrCreate finds a customer by any identity field or creates a new
// one. The returned bool is true when a new record was created.
func (s *Service) GetOrCreate(lookup Lookup) (*models.Customer, bool, error) {
	existing, err := s.findByIdentity(lookup)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	customer := models.Customer{
		Name:        lookup.Name,
		Email:       models.StringPtr(lookup.Email),
		RelayEmail:  models.StringPtr(lookup.RelayEmail),
		PhoneNumber: models.StringPtr(lookup.PhoneNumber),
		Platform:    lookup.Platform,
		Address:     lookup.Address,
	}
	if err := s.db.Create(&customer).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create customer: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"platform":    customer.Platform,
	}).Info("Created customer")

	return &customer, true, nil
}

func (s *Service) findByIdentity(lookup Lookup) (*models.Customer, error) {
	var customer models.Customer

	type probe struct {
		column string
		value  string
	}
	probes := []probe{
		{"phone_number", lookup.PhoneNumber},
		{"email", lookup.Email},
		{"relay_email", lookup.RelayEmail},
	}

	for _, p := range probes {
		if p.value == "" {
			continue
		}
		err := s.db.Where(p.column+" = ?", p.value).First(&customer).Error
		if err == nil {
			return &customer, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer lookup by %s failed: %w", p.column, err)
		}
	}
	return nil, nil
}

// Get loads a customer by ID
func (s *Service) Get(id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// Update applies field changes to a customer and records one change log
// entry per modified field.
func (s *Service) Update(id uint, changes map[string]string, updatedBy string) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.First(&customer, id).Error; err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for field, newValue := range changes {
			oldValue, ok := s.applyField(&customer, field, newValue)
			if !ok {
				return models.NewValidationError(fmt.Sprintf("unknown customer field %q", field))
			}
			if oldValue == newValue {
				continue
			}
			logEntry := models.CustomerChangeLog{
				CustomerID: customer.ID,
				FieldName:  field,
				OldValue:   oldValue,
				NewValue:   newValue,
				UpdatedBy:  updatedBy,
			}
			if err := tx.Create(&logEntry).Error; err != nil {
				return fmt.Errorf("failed to write customer change log: %w", err)
			}
		}
		return tx.Save(&customer).Error
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// applyField sets one mutable field, returning its previous value
func (s *Service) applyField(c *models.Customer, field, value string) (string, bool) {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	switch field {
	case "name":
		old := c.Name
		c.Name = value
		return old, true
	case "email":
		old := deref(c.Email)
		c.Email = models.StringPtr(value)
		return old, true
	case "relay_email":
		old := deref(c.RelayEmail)
		c.RelayEmail = models.StringPtr(value)
		return old, true
	case "phone_number":
		old := deref(c.PhoneNumber)
		c.PhoneNumber = models.StringPtr(value)
		return old, true
	case "notes":
		old := c.Notes
		c.Notes = value
		return old, true
	}
	return "", false
}

// Merge folds the duplicate customer into the primary one. Orders move
// to the primary; missing contact fields are filled from the duplicate;
// the duplicate is deleted.
func (s *Service) Merge(primaryID, duplicateID uint, performedBy string) (*models.Customer, error) {
	if primaryID == duplicateID {
		return nil, models.NewValidationError("cannot merge a customer into itself")
	}

	var primary, duplicate models.Customer
	if err := s.db.First(&primary, primaryID).Error; err != nil {
		return nil, fmt.Errorf("primary customer not found: %w", err)
	}
	if err := s.db.First(&duplicate, duplicateID).Error; err != nil {
		return nil, fmt.Errorf("duplicate customer not found: %w", err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).
			Where("customer_id = ?", duplicate.ID).
			Update("customer_id", primary.ID).Error; err != nil {
			return fmt.Errorf("failed to move orders: %w", err)
		}
		if err := tx.Model(&models.Warranty{}).
			Where("customer_id = ?", duplicate.ID).
			Update("customer_id", primary.ID).Error; err != nil {
			return fmt.Errorf("failed to move warranties: %w", err)
		}

		// Contact fields on the duplicate must be released before the
		// primary can claim them (unique indexes)
		if err := tx.Model(&models.CustomerChangeLog{}).
			Where("customer_id = ?", duplicate.ID).
			Update("customer_id", primary.ID).Error; err != nil {
			return fmt.Errorf("failed to move change log: %w", err)
		}
		dupEmail, dupRelay, dupPhone := duplicate.Email, duplicate.RelayEmail, duplicate.PhoneNumber
		if err := tx.Delete(&duplicate).Error; err != nil {
			return fmt.Errorf("failed to delete duplicate: %w", err)
		}

		changed := false
		if primary.Email == nil && dupEmail != nil {
			primary.Email = dupEmail
			changed = true
		}
		if primary.RelayEmail == nil && dupRelay != nil {
			primary.RelayEmail = dupRelay
			changed = true
		}
		if primary.PhoneNumber == nil && dupPhone != nil {
			primary.PhoneNumber = dupPhone
			changed = true
		}
		if changed {
			if err := tx.Save(&primary).Error; err != nil {
				return fmt.Errorf("failed to update primary customer: %w", err)
			}
		}

		logEntry := models.CustomerChangeLog{
			CustomerID: primary.ID,
			FieldName:  "merged_from",
			NewValue:   fmt.Sprintf("%d", duplicateID),
			UpdatedBy:  performedBy,
		}
		return tx.Create(&logEntry).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"primary_id":   primaryID,
		"duplicate_id": duplicateID,
	}).Info("Merged customers")

	return &primary, nil
}

// ChangeLog returns the change history of a customer, newest first
func (s *Service) ChangeLog(customerID uint) ([]models.CustomerChangeLog, error) {
	var entries []models.CustomerChangeLog
	err := s.db.Where("customer_id = ?", customerID).
		Order("updated_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}
