package warranty

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service manages the warranty lifecycle
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
	cfg config.WarrantyConfig

	stopChan chan struct{}
	running  bool
}

// NewService creates a new warranty service
func NewService(db *gorm.DB, log *logrus.Logger, cfg config.WarrantyConfig) *Service {
	return &Service{
		db:       db,
		log:      log,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the periodic expiration sweep
func (s *Service) Start() {
	if s.running {
		return
	}
	s.running = true

	go func() {
		ticker := time.NewTicker(s.cfg.ExpiryCheckInterval)
		defer ticker.Stop()

		s.log.Infof("🕐 Warranty expiration sweep started (every %s)", s.cfg.ExpiryCheckInterval)

		for {
			select {
			case <-ticker.C:
				if count, err := s.CheckAndExpire(); err != nil {
					s.log.Errorf("Warranty expiration sweep failed: %v", err)
				} else if count > 0 {
					s.log.Infof("Expired %d warranties", count)
				}
			case <-s.stopChan:
				s.log.Info("🛑 Warranty expiration sweep stopped")
				return
			}
		}
	}()
}

// Stop terminates the background sweep
func (s *Service) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
}

// Get loads a warranty by ID
func (s *Service) Get(id uint) (*models.Warranty, error) {
	var w models.Warranty
	if err := s.db.Preload("ProductUnit").First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetBySerial finds the warranty covering the unit with the given serial
func (s *Service) GetBySerial(serial string) (*models.Warranty, error) {
	var unit models.ProductUnit
	err := s.db.Where("serial_number = ? OR manufacturer_serial = ?", serial, serial).
		First(&unit).Error
	if err != nil {
		return nil, fmt.Errorf("no unit with serial %q: %w", serial, err)
	}

	var w models.Warranty
	if err := s.db.Where("product_unit_id = ?", unit.ID).First(&w).Error; err != nil {
		return nil, err
	}
	w.ProductUnit = &unit
	return &w, nil
}

// CreateOrUpdate ensures a warranty record exists for the unit. When one
// already exists its order and customer links refresh; periods and
// status never reset through this path.
func (s *Service) CreateOrUpdate(tx *gorm.DB, unitID uint, customerID, orderID *uint, purchaseDate time.Time) (*models.Warranty, error) {
	if tx == nil {
		tx = s.db
	}

	var w models.Warranty
	err := tx.Where("product_unit_id = ?", unitID).First(&w).Error
	switch {
	case err == nil:
		w.CustomerID = customerID
		w.OrderID = orderID
		if err := tx.Save(&w).Error; err != nil {
			return nil, err
		}
		return &w, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		w = models.Warranty{
			ProductUnitID:  unitID,
			CustomerID:     customerID,
			OrderID:        orderID,
			PurchaseDate:   purchaseDate,
			WarrantyPeriod: s.cfg.DefaultPeriodMonths,
			MaxExtensions:  s.cfg.MaxExtensions,
			Status:         models.WarrantyStatusNotRegistered,
		}
		if err := tx.Create(&w).Error; err != nil {
			return nil, fmt.Errorf("failed to create warranty: %w", err)
		}
		if err := s.appendLog(tx, &w, models.WarrantyLogCreated, nil, "", "system"); err != nil {
			return nil, err
		}
		return &w, nil
	default:
		return nil, err
	}
}

// ProcessOrderWarranties starts coverage for every unit assigned to a
// shipped order. Runs inside the order transition transaction.
func (s *Service) ProcessOrderWarranties(tx *gorm.DB, order *models.Order) error {
	purchaseDate := order.OrderDate
	if order.ShipDate != nil {
		purchaseDate = *order.ShipDate
	}

	for i := range order.Items {
		var units []models.ProductUnit
		if err := tx.Where("order_item_id = ?", order.Items[i].ID).Find(&units).Error; err != nil {
			return fmt.Errorf("failed to load units for item %d: %w", order.Items[i].ID, err)
		}
		for j := range units {
			if _, err := s.CreateOrUpdate(tx, units[j].ID, &order.CustomerID, &order.ID, purchaseDate); err != nil {
				return err
			}
		}
	}
	return nil
}

// Activate registers coverage for the unit found by serial. The
// activation code printed on the unit's label must match; the customer
// link is optional.
func (s *Service) Activate(serial, activationCode string, customerID *uint, notes string) (*models.Warranty, error) {
	w, err := s.GetBySerial(serial)
	if err != nil {
		return nil, err
	}
	if w.ProductUnit == nil || !strings.EqualFold(w.ProductUnit.ActivationCode, activationCode) {
		return nil, models.NewValidationError("activation code does not match")
	}

	// Reject unreachable states before touching the customer link, so a
	// failed activation applies nothing.
	if w.Status != models.WarrantyStatusActive && !w.CanTransitionTo(models.WarrantyStatusActive) {
		return nil, models.NewValidationError(
			fmt.Sprintf("cannot transition warranty from %s to %s", w.Status, models.WarrantyStatusActive))
	}

	if customerID != nil {
		w.CustomerID = customerID
	}
	if notes != "" {
		w.Comments = notes
	}
	if err := s.db.Save(w).Error; err != nil {
		return nil, err
	}

	changed, err := s.TransitionStatus(w.ID, models.WarrantyStatusActive, "activated by serial", "customer", false)
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// TransitionStatus moves the warranty to newStatus through the allowed
// transition table, logging before and after snapshots. Moving to the
// current status is a silent no-op. adminEdit marks the log entry as an
// administrative override and suppresses the service log line.
func (s *Service) TransitionStatus(id uint, newStatus models.WarrantyStatus, reason, performedBy string, adminEdit bool) (*models.Warranty, error) {
	var w models.Warranty
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, err
	}

	if w.Status == newStatus {
		return &w, nil
	}
	if !w.CanTransitionTo(newStatus) {
		return nil, models.NewValidationError(
			fmt.Sprintf("cannot transition warranty from %s to %s", w.Status, newStatus))
	}

	before := snapshot(&w)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w.Status = newStatus
		if err := tx.Save(&w).Error; err != nil {
			return fmt.Errorf("failed to update warranty status: %w", err)
		}

		action := models.WarrantyLogStatusChange
		switch {
		case adminEdit:
			action = models.WarrantyLogAdminEdit
		case newStatus == models.WarrantyStatusActive:
			action = models.WarrantyLogActivated
		}
		return s.appendLog(tx, &w, action, before, reason, performedBy)
	})
	if err != nil {
		return nil, err
	}

	if !adminEdit {
		s.log.WithFields(logrus.Fields{
			"warranty_id": w.ID,
			"status":      newStatus,
		}).Info("Warranty status changed")
	}
	return &w, nil
}

// Extend adds months of coverage. The warranty must still be inside its
// coverage window and total coverage after the extension must stay
// within max_extensions base periods. Registration is not required.
func (s *Service) Extend(id uint, months int, reason, performedBy string) (*models.Warranty, error) {
	if months < 1 {
		return nil, models.NewValidationError("extension must be at least one month")
	}

	var w models.Warranty
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	if w.IsExpired() {
		return nil, models.NewValidationError("expired warranties cannot be extended")
	}

	coverageCap := w.MaxExtensions * w.WarrantyPeriod
	if w.WarrantyPeriod+w.ExtendedPeriod+months > coverageCap {
		return nil, models.NewValidationError(fmt.Sprintf(
			"extension of %d months exceeds the coverage cap of %d months", months, coverageCap))
	}

	before := snapshot(&w)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w.ExtendedPeriod += months
		w.IsExtended = true
		exp := w.ComputeExpiration()
		w.WarrantyExpirationDate = &exp
		if err := tx.Save(&w).Error; err != nil {
			return fmt.Errorf("failed to extend warranty: %w", err)
		}
		return s.appendLog(tx, &w, models.WarrantyLogExtended, before, reason, performedBy)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Reset returns the warranty to base, unregistered coverage. Extensions
// and registration are cleared and the expiration date recomputes from
// the purchase date. keepCustomer false also detaches the customer.
func (s *Service) Reset(id uint, reason, performedBy string, keepCustomer bool) (*models.Warranty, error) {
	var w models.Warranty
	if err := s.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	if w.Status == models.WarrantyStatusNotRegistered {
		return nil, models.NewValidationError("warranty is already unregistered")
	}

	before := snapshot(&w)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w.Status = models.WarrantyStatusNotRegistered
		w.RegisteredAt = nil
		w.ExtendedPeriod = 0
		w.IsExtended = false
		if !keepCustomer {
			w.CustomerID = nil
		}
		exp := w.ComputeExpiration()
		w.WarrantyExpirationDate = &exp

		updates := map[string]interface{}{
			"status":                   w.Status,
			"registered_at":            nil,
			"extended_period":          0,
			"is_extended":              false,
			"warranty_expiration_date": exp,
		}
		if !keepCustomer {
			updates["customer_id"] = nil
		}
		if err := tx.Model(&w).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to reset warranty: %w", err)
		}
		return s.appendLog(tx, &w, models.WarrantyLogReset, before, reason, performedBy)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CheckAndExpire moves overdue active warranties to expired and returns
// how many changed.
func (s *Service) CheckAndExpire() (int, error) {
	var overdue []models.Warranty
	err := s.db.Where("status = ? AND warranty_expiration_date < ?",
		models.WarrantyStatusActive, time.Now().UTC()).
		Find(&overdue).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query overdue warranties: %w", err)
	}

	count := 0
	for i := range overdue {
		if _, err := s.TransitionStatus(overdue[i].ID, models.WarrantyStatusExpired,
			"coverage period ended", "system", false); err != nil {
			s.log.Errorf("Failed to expire warranty %d: %v", overdue[i].ID, err)
			continue
		}
		count++
	}
	return count, nil
}

// Logs returns the audit trail of a warranty, newest first
func (s *Service) Logs(warrantyID uint) ([]models.WarrantyLog, error) {
	var entries []models.WarrantyLog
	err := s.db.Where("warranty_id = ?", warrantyID).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

func (s *Service) appendLog(tx *gorm.DB, w *models.Warranty, action models.WarrantyLogAction, before datatypes.JSON, reason, performedBy string) error {
	entry := models.WarrantyLog{
		WarrantyID:  w.ID,
		Action:      action,
		Before:      before,
		After:       snapshot(w),
		Reason:      reason,
		PerformedBy: performedBy,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write warranty log: %w", err)
	}
	return nil
}

// snapshot captures the mutable warranty fields for the audit trail
func snapshot(w *models.Warranty) datatypes.JSON {
	state := map[string]interface{}{
		"status":          w.Status,
		"warranty_period": w.WarrantyPeriod,
		"extended_period": w.ExtendedPeriod,
		"is_extended":     w.IsExtended,
	}
	if w.CustomerID != nil {
		state["customer_id"] = *w.CustomerID
	}
	if w.WarrantyExpirationDate != nil {
		state["warranty_expiration_date"] = w.WarrantyExpirationDate.Format(time.RFC3339)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
