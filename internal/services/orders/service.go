package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WarrantyCreator starts warranty coverage for the units of a shipped
// order. Wired to the warranty service at startup.
type WarrantyCreator interface {
	ProcessOrderWarranties(tx *gorm.DB, order *models.Order) error
}

// Service manages order lifecycle and unit assignment
type Service struct {
	db         *gorm.DB
	log        *logrus.Logger
	warranties WarrantyCreator
}

// NewService creates a new order service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// SetWarrantyCreator wires the warranty side effect of shipping
func (s *Service) SetWarrantyCreator(wc WarrantyCreator) {
	s.warranties = wc
}

// Get loads an order with its items
func (s *Service) Get(id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").Preload("Customer").First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderNumber loads an order by its unique order number
func (s *Service) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create stores a new order in the created state
func (s *Service) Create(order *models.Order) error {
	if order.OrderNumber == "" {
		return models.NewValidationError("order number is required")
	}
	if order.State == "" {
		order.State = models.OrderStateCreated
	}
	if err := s.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"platform":     order.Platform,
	}).Info("Created order")
	return nil
}

// TransitionState is the single entry point for order state changes.
// It validates the move against the transition whitelist, enforces the
// tracking precondition for shipped, always appends a history entry,
// and runs state side effects in the same transaction.
func (s *Service) TransitionState(orderID uint, newState models.OrderState, reason, changedBy string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, orderID).Error; err != nil {
		return nil, err
	}

	if order.State == newState {
		return nil, models.NewValidationError(fmt.Sprintf("order is already %s", newState))
	}
	if !order.CanTransitionTo(newState) {
		return nil, models.NewValidationError(
			fmt.Sprintf("cannot transition order from %s to %s", order.State, newState))
	}
	if newState == models.OrderStateShipped && !order.HasTrackingInfo() {
		return nil, models.NewValidationError("cannot ship order without tracking info")
	}

	previous := order.State
	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"state": newState}
		if newState == models.OrderStateShipped && order.ShipDate == nil {
			now := time.Now().UTC()
			order.ShipDate = &now
			updates["ship_date"] = now
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order state: %w", err)
		}
		order.State = newState

		history := models.OrderStatusHistory{
			OrderID:        order.ID,
			PreviousStatus: string(previous),
			NewStatus:      string(newState),
			Reason:         reason,
			ChangedBy:      changedBy,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to write status history: %w", err)
		}

		switch newState {
		case models.OrderStateReturned:
			if err := s.releaseUnits(tx, &order); err != nil {
				return err
			}
		case models.OrderStateShipped:
			if s.warranties != nil {
				if err := s.warranties.ProcessOrderWarranties(tx, &order); err != nil {
					return fmt.Errorf("failed to start warranties: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       newState,
	}).Info("Order state changed")

	return &order, nil
}

// releaseUnits unassigns every product unit attached to the order's items
func (s *Service) releaseUnits(tx *gorm.DB, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]

		var units []models.ProductUnit
		if err := tx.Where("order_item_id = ?", item.ID).Find(&units).Error; err != nil {
			return fmt.Errorf("failed to load assigned units: %w", err)
		}
		for j := range units {
			if err := units[j].Unassign(tx); err != nil {
				return fmt.Errorf("failed to unassign unit %d: %w", units[j].ID, err)
			}
		}

		if err := tx.Model(item).Update("status", models.OrderItemStatusReturned).Error; err != nil {
			return fmt.Errorf("failed to mark item returned: %w", err)
		}
	}
	return nil
}

// UpsertItem adds or updates the order's line for a product. The
// derived total_price and the parent order total recompute through the
// item save hooks.
func (s *Service) UpsertItem(orderID, productID uint, quantity int, priceData models.JSONB) (*models.OrderItem, error) {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		return nil, err
	}
	if order.State != models.OrderStateCreated && order.State != models.OrderStateConfirmed {
		return nil, models.NewValidationError(
			fmt.Sprintf("cannot modify items of a %s order", order.State))
	}

	var item models.OrderItem
	err := s.db.Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error
	switch {
	case err == nil:
		item.Quantity = quantity
		item.PriceData = priceData
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  quantity,
			PriceData: priceData,
		}
	default:
		return nil, err
	}

	if err := s.db.Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// AssignUnits attaches in-stock serialized units to an order item and
// marks the item assigned once enough units are attached.
func (s *Service) AssignUnits(orderItemID uint, unitIDs []uint, performedBy string) error {
	var item models.OrderItem
	if err := s.db.First(&item, orderItemID).Error; err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, unitID := range unitIDs {
			var unit models.ProductUnit
			if err := tx.First(&unit, unitID).Error; err != nil {
				return fmt.Errorf("unit %d not found: %w", unitID, err)
			}
			if unit.ProductID != item.ProductID {
				return models.NewValidationError(
					fmt.Sprintf("unit %d belongs to a different product", unitID))
			}
			if unit.Status != models.UnitStatusInStock || unit.OrderItemID != nil {
				return models.NewValidationError(
					fmt.Sprintf("unit %d is not available for assignment", unitID))
			}

			if err := tx.Model(&unit).Updates(map[string]interface{}{
				"order_item_id": item.ID,
				"status":        models.UnitStatusAssigned,
			}).Error; err != nil {
				return fmt.Errorf("failed to assign unit %d: %w", unitID, err)
			}

			history := models.ProductUnitAssignmentHistory{
				ProductUnitID: unit.ID,
				OrderItemID:   &item.ID,
				Action:        models.AssignmentActionAssigned,
				Comments:      performedBy,
			}
			if err := tx.Create(&history).Error; err != nil {
				return fmt.Errorf("failed to write assignment history: %w", err)
			}
		}

		var assigned int64
		if err := tx.Model(&models.ProductUnit{}).
			Where("order_item_id = ?", item.ID).
			Count(&assigned).Error; err != nil {
			return err
		}
		if assigned >= int64(item.Quantity) {
			return tx.Model(&item).Update("status", models.OrderItemStatusAssigned).Error
		}
		return nil
	})
}

// History returns the status history of an order, newest first
func (s *Service) History(orderID uint) ([]models.OrderStatusHistory, error) {
	var entries []models.OrderStatusHistory
	err := s.db.Scopes(models.NewestFirst).
		Where("order_id = ?", orderID).
		Find(&entries).Error
	return entries, err
}

// List returns orders filtered by optional state and platform
func (s *Service) List(state models.OrderState, platform models.Platform, limit int) ([]models.Order, error) {
	query := s.db.Preload("Items").Order("order_date DESC")
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var list []models.Order
	err := query.Find(&list).Error
	return list, err
}
