package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service manages stock levels, inventory receipts and unit generation
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// CreateReceipt stores an unprocessed inventory receipt
func (s *Service) CreateReceipt(receipt *models.InventoryReceipt) error {
	if err := s.db.Create(receipt).Error; err != nil {
		return fmt.Errorf("failed to create inventory receipt: %w", err)
	}
	return nil
}

// ProcessReceipt posts a receipt into stock, bumps the stock level and,
// unless unit creation is disabled, spawns one serialized unit per
// received piece. Family-level receipts resolve to a concrete product
// first. serials provides per-unit serial numbers; missing entries
// leave the serial empty for later capture. A non-nil tx runs the
// posting inside the caller's transaction.
func (s *Service) ProcessReceipt(tx *gorm.DB, receiptID uint, serials []string) (*models.InventoryReceipt, error) {
	if tx == nil {
		tx = s.db
	}

	var receipt models.InventoryReceipt
	if err := tx.First(&receipt, receiptID).Error; err != nil {
		return nil, err
	}
	if receipt.IsProcessed {
		return nil, models.NewValidationError("inventory receipt is already processed")
	}
	if len(serials) > receipt.Quantity {
		return nil, models.NewValidationError("more serial numbers than received quantity")
	}

	err := tx.Transaction(func(tx *gorm.DB) error {
		if receipt.ProductID == nil {
			if receipt.ProductFamilyID == nil {
				return models.NewValidationError("inventory receipt must reference a product or a product family")
			}
			product, err := s.resolveFamilyProduct(tx, *receipt.ProductFamilyID)
			if err != nil {
				return err
			}
			receipt.ProductID = &product.ID
		}

		if receipt.LocationID != nil {
			if err := s.adjustStock(tx, *receipt.ProductID, *receipt.LocationID, receipt.Quantity); err != nil {
				return err
			}
		}

		if receipt.CreateProductUnits {
			for i := 0; i < receipt.Quantity; i++ {
				unit := models.ProductUnit{
					ProductID: *receipt.ProductID,
					Status:    models.UnitStatusInStock,
					Metadata: models.JSONB{
						"receipt_id": receipt.ID,
						"batch_code": receipt.BatchCode,
					},
				}
				if i < len(serials) && serials[i] != "" {
					unit.SerialNumber = models.StringPtr(serials[i])
				}
				if err := tx.Create(&unit).Error; err != nil {
					return fmt.Errorf("failed to create product unit: %w", err)
				}
			}
		}

		now := time.Now().UTC()
		receipt.IsProcessed = true
		receipt.ProcessedAt = &now
		return tx.Save(&receipt).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"receipt_id": receipt.ID,
		"product_id": *receipt.ProductID,
		"quantity":   receipt.Quantity,
	}).Info("Processed inventory receipt")

	return &receipt, nil
}

// resolveFamilyProduct picks the product a family-level receipt posts
// against: the family's first variant, or a freshly created placeholder
// variant when the family has none yet.
func (s *Service) resolveFamilyProduct(tx *gorm.DB, familyID uint) (*models.Product, error) {
	var product models.Product
	err := tx.Where("family_id = ?", familyID).Order("id ASC").First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var family models.ProductFamily
	if err := tx.First(&family, familyID).Error; err != nil {
		return nil, err
	}
	product = models.Product{
		Name:     family.Name + " (Default)",
		SKU:      models.StringPtr(family.SKU + "-DEF"),
		FamilyID: &family.ID,
	}
	if err := tx.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create placeholder product for family %s: %w", family.SKU, err)
	}

	s.log.WithFields(logrus.Fields{
		"family_id": familyID,
		"sku":       *product.SKU,
	}).Info("Created placeholder product for family-level receipt")
	return &product, nil
}

// adjustStock changes on-hand quantity, creating the stock level row on
// first receipt at a location.
func (s *Service) adjustStock(tx *gorm.DB, productID, locationID uint, delta int) error {
	var level models.StockLevel
	err := tx.Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&level).Error
	switch {
	case err == nil:
		if level.Quantity+delta < 0 {
			return models.NewValidationError("stock level cannot go negative")
		}
		return tx.Model(&level).
			Update("quantity", gorm.Expr("quantity + ?", delta)).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if delta < 0 {
			return models.NewValidationError("stock level cannot go negative")
		}
		level = models.StockLevel{
			ProductID:  productID,
			LocationID: locationID,
			Quantity:   delta,
		}
		return tx.Create(&level).Error
	default:
		return err
	}
}

// AdjustStock changes on-hand quantity outside of receipt processing
func (s *Service) AdjustStock(productID, locationID uint, delta int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.adjustStock(tx, productID, locationID, delta)
	})
}

// StockFor returns per-location stock levels of a product
func (s *Service) StockFor(productID uint) ([]models.StockLevel, error) {
	var levels []models.StockLevel
	err := s.db.Preload("Location").
		Where("product_id = ?", productID).
		Find(&levels).Error
	return levels, err
}

// AvailableUnits lists unassigned in-stock units of a product
func (s *Service) AvailableUnits(productID uint) ([]models.ProductUnit, error) {
	var units []models.ProductUnit
	err := s.db.Where("product_id = ? AND status = ? AND order_item_id IS NULL",
		productID, models.UnitStatusInStock).
		Find(&units).Error
	return units, err
}

// DefaultLocation returns the location flagged as default
func (s *Service) DefaultLocation() (*models.Location, error) {
	var loc models.Location
	err := s.db.Where("default_location = ? AND is_active = ?", true, true).
		First(&loc).Error
	if err != nil {
		return nil, fmt.Errorf("no default location configured: %w", err)
	}
	return &loc, nil
}
