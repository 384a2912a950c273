package platformsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/platform"
	"github.com/replugit/opsgo/internal/services/customers"
	"github.com/replugit/opsgo/internal/services/inventory"
	"github.com/replugit/opsgo/internal/services/orders"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config tunes the background sync loop
type Config struct {
	Interval time.Duration
	Enabled  bool
}

// Service orchestrates synchronization between marketplaces and the
// local database.
type Service struct {
	db        *gorm.DB
	log       *logrus.Logger
	registry  *platform.Registry
	customers *customers.Service
	orders    *orders.Service
	inventory *inventory.Service
	cfg       Config
	stop      chan struct{}
}

// NewService creates a new platform sync service
func NewService(db *gorm.DB, log *logrus.Logger, registry *platform.Registry,
	customerSvc *customers.Service, orderSvc *orders.Service, inventorySvc *inventory.Service,
	cfg Config) *Service {
	return &Service{
		db:        db,
		log:       log,
		registry:  registry,
		customers: customerSvc,
		orders:    orderSvc,
		inventory: inventorySvc,
		cfg:       cfg,
		stop:      make(chan struct{}),
	}
}

// Start begins the background synchronization loop
func (s *Service) Start() {
	if !s.cfg.Enabled {
		s.log.Info("Platform sync disabled")
		return
	}

	go func() {
		s.log.Info("📡 Platform sync service started")

		// Initial sync delay
		time.Sleep(5 * time.Second)
		s.runFullSync()

		interval := s.cfg.Interval
		if interval <= 0 {
			interval = 15 * time.Minute
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runFullSync()
			case <-s.stop:
				s.log.Info("🛑 Platform sync service stopped")
				return
			}
		}
	}()
}

// Stop halts the service
func (s *Service) Stop() {
	close(s.stop)
}

// runFullSync runs all sync operations for every registered platform
func (s *Service) runFullSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.log.Info("🔄 Platform sync: starting full sync...")

	for _, p := range s.registry.Platforms() {
		adapter, err := s.registry.Get(p)
		if err != nil {
			continue
		}
		if err := s.SyncProducts(ctx, adapter); err != nil {
			s.log.Errorf("Product sync failed for %s: %v", p, err)
		}
		if err := s.SyncOrders(ctx, adapter); err != nil {
			s.log.Errorf("Order sync failed for %s: %v", p, err)
		}
	}

	s.log.Info("✅ Platform sync: full sync completed")
}

// SyncOrders pulls new orders from the platform and ingests them.
// Newly created orders are acknowledged upstream.
func (s *Service) SyncOrders(ctx context.Context, adapter platform.Adapter) error {
	since := s.lastOrderDate(adapter.Platform())

	fetched, err := adapter.FetchOrders(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}

	ingested := 0
	for i := range fetched {
		created, err := s.IngestOrder(adapter.Platform(), &fetched[i])
		if err != nil {
			s.log.Errorf("Failed to ingest order %s: %v", fetched[i].OrderNumber, err)
			continue
		}
		if created {
			ingested++
			if fetched[i].State == models.OrderStateCreated {
				if err := adapter.AcknowledgeOrder(ctx, fetched[i].OrderNumber); err != nil {
					s.log.Errorf("Failed to acknowledge order %s: %v", fetched[i].OrderNumber, err)
				}
			}
		}
	}

	if ingested > 0 {
		s.log.Infof("Ingested %d new orders from %s", ingested, adapter.Platform())
	}
	return nil
}

// lastOrderDate finds the newest order date stored for a platform
func (s *Service) lastOrderDate(p models.Platform) time.Time {
	var last models.Order
	err := s.db.Where("platform = ?", p).Order("order_date DESC").First(&last).Error
	if err != nil {
		return time.Now().UTC().AddDate(0, 0, -30)
	}
	return last.OrderDate
}

// IngestOrder persists one normalized order. Existing orders (by order
// number) advance through the lifecycle when the platform reports a
// later state; the returned bool is true on creation.
func (s *Service) IngestOrder(p models.Platform, po *platform.ProcessedOrder) (bool, error) {
	var existing models.Order
	err := s.db.Where("order_number = ?", po.OrderNumber).First(&existing).Error
	if err == nil {
		s.reconcileState(&existing, po)
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	customer, _, err := s.customers.GetOrCreate(customers.Lookup{
		Name:        po.CustomerName,
		RelayEmail:  po.CustomerEmail,
		PhoneNumber: po.CustomerPhone,
		Platform:    p,
		Address:     po.ShippingAddress,
	})
	if err != nil {
		return false, fmt.Errorf("resolve customer: %w", err)
	}

	order := models.Order{
		OrderNumber:          po.OrderNumber,
		CustomerOrderID:      po.CustomerOrderID,
		Platform:             p,
		OrderDate:            po.OrderDate,
		CustomerID:           customer.ID,
		State:                po.State,
		PlatformSpecificData: po.PlatformSpecificData,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for j := range po.Items {
			product, err := s.resolveProduct(tx, p, &po.Items[j])
			if err != nil {
				return err
			}
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  po.Items[j].Quantity,
				PriceData: po.Items[j].PriceData,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// reconcileState advances a stored order when the platform reports a
// later lifecycle state. The refreshed payload lands first so the
// tracking precondition on shipped holds.
func (s *Service) reconcileState(existing *models.Order, po *platform.ProcessedOrder) {
	if po.State == "" || existing.State == po.State || !existing.CanTransitionTo(po.State) {
		return
	}

	if len(po.PlatformSpecificData) > 0 {
		if err := s.db.Model(existing).
			Update("platform_specific_data", po.PlatformSpecificData).Error; err != nil {
			s.log.Errorf("Failed to refresh platform data for order %s: %v", existing.OrderNumber, err)
			return
		}
	}

	if _, err := s.orders.TransitionState(existing.ID, po.State,
		"platform status update", "platform_sync"); err != nil {
		s.log.Errorf("Failed to advance order %s to %s: %v", existing.OrderNumber, po.State, err)
	}
}

// resolveProduct finds the product an ingested line refers to, creating
// a stub record for unknown SKUs so the order is never dropped.
func (s *Service) resolveProduct(tx *gorm.DB, p models.Platform, item *platform.ProcessedItem) (*models.Product, error) {
	var product models.Product
	err := tx.Where("sku = ?", item.SKU).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	product = models.Product{
		Name:     item.Name,
		SKU:      models.StringPtr(item.SKU),
		Platform: p,
	}
	if err := tx.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create stub product for sku %q: %w", item.SKU, err)
	}
	s.log.Warnf("Created stub product for unknown sku %q", item.SKU)
	return &product, nil
}

// SyncProducts pulls the platform catalog into the product table
func (s *Service) SyncProducts(ctx context.Context, adapter platform.Adapter) error {
	fetched, err := adapter.GetProducts(ctx, 200)
	if err != nil {
		return fmt.Errorf("fetch products: %w", err)
	}

	for i := range fetched {
		pp := &fetched[i]
		product := models.Product{
			Name:         pp.Name,
			SKU:          models.StringPtr(pp.SKU),
			GTIN:         models.StringPtr(pp.GTIN),
			ProductType:  pp.ProductType,
			Platform:     adapter.Platform(),
			PlatformData: pp.PlatformData,
		}
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gtin"}},
			UpdateAll: true,
		}).Create(&product).Error
		if err != nil {
			s.log.Errorf("Failed to upsert product %s: %v", pp.SKU, err)
		}
	}
	return nil
}

// PushInventory publishes on-hand stock counts for every product of a
// platform.
func (s *Service) PushInventory(ctx context.Context, adapter platform.Adapter) error {
	var products []models.Product
	err := s.db.Where("platform = ? AND sku IS NOT NULL", adapter.Platform()).
		Find(&products).Error
	if err != nil {
		return err
	}

	for i := range products {
		levels, err := s.inventory.StockFor(products[i].ID)
		if err != nil {
			return err
		}
		total := 0
		for _, level := range levels {
			total += level.Quantity
		}
		if err := adapter.UpdateInventory(ctx, *products[i].SKU, total); err != nil {
			s.log.Errorf("Failed to push inventory for %s: %v", *products[i].SKU, err)
		}
	}
	return nil
}
