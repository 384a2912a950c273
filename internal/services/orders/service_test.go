package orders

import (
	"testing"
	"time"

	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/warranty"
	"github.com/replugit/opsgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCustomer(t *testing.T, db *gorm.DB) *models.Customer {
	t.Helper()
	customer := models.Customer{
		Name:     "Jane Buyer",
		Email:    models.StringPtr("jane@example.com"),
		Platform: models.PlatformManual,
	}
	require.NoError(t, db.Create(&customer).Error)
	return &customer
}

func seedProduct(t *testing.T, db *gorm.DB, sku string) *models.Product {
	t.Helper()
	product := models.Product{
		Name: "Test Laptop " + sku,
		SKU:  models.StringPtr(sku),
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func seedOrder(t *testing.T, db *gorm.DB, state models.OrderState, extra models.JSONB) *models.Order {
	t.Helper()
	customer := seedCustomer(t, db)
	order := models.Order{
		OrderNumber:          "ORD-" + string(state) + "-1",
		Platform:             models.PlatformWalmartCA,
		CustomerID:           customer.ID,
		State:                state,
		PlatformSpecificData: extra,
	}
	require.NoError(t, db.Create(&order).Error)
	return &order
}

func withTracking() models.JSONB {
	return models.JSONB{
		"tracking_info": map[string]interface{}{
			"tracking_number": "1Z999",
			"carrier":         "UPS",
		},
	}
}

func TestTransitionState_RejectsInvalidMoves(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	invalid := []struct {
		from models.OrderState
		to   models.OrderState
	}{
		{models.OrderStateCreated, models.OrderStateShipped},
		{models.OrderStateCreated, models.OrderStateDelivered},
		{models.OrderStateCreated, models.OrderStateReturned},
		{models.OrderStateConfirmed, models.OrderStateDelivered},
		{models.OrderStateConfirmed, models.OrderStateReturned},
		{models.OrderStateShipped, models.OrderStateConfirmed},
		{models.OrderStateShipped, models.OrderStateCancelled},
		{models.OrderStateDelivered, models.OrderStateCancelled},
		{models.OrderStateDelivered, models.OrderStateShipped},
		{models.OrderStateReturned, models.OrderStateCreated},
		{models.OrderStateReturned, models.OrderStateShipped},
		{models.OrderStateCancelled, models.OrderStateConfirmed},
		{models.OrderStateCancelled, models.OrderStateReturned},
	}

	for i, tc := range invalid {
		customer := models.Customer{
			Name:  "Matrix Buyer",
			Email: models.StringPtr("matrix" + string(rune('a'+i)) + "@example.com"),
		}
		require.NoError(t, db.Create(&customer).Error)
		order := models.Order{
			OrderNumber:          "ORD-MATRIX-" + string(rune('a'+i)),
			CustomerID:           customer.ID,
			State:                tc.from,
			PlatformSpecificData: withTracking(),
		}
		require.NoError(t, db.Create(&order).Error)

		_, err := svc.TransitionState(order.ID, tc.to, "test", "tester")
		assert.True(t, models.IsValidationError(err),
			"expected validation error for %s -> %s", tc.from, tc.to)

		var reloaded models.Order
		require.NoError(t, db.First(&reloaded, order.ID).Error)
		assert.Equal(t, tc.from, reloaded.State,
			"state must not change on rejected %s -> %s", tc.from, tc.to)
	}
}

func TestTransitionState_SameStateRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateConfirmed, nil)

	_, err := svc.TransitionState(order.ID, models.OrderStateConfirmed, "noop", "tester")
	assert.True(t, models.IsValidationError(err))
}

func TestTransitionState_ShippedRequiresTracking(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateConfirmed, nil)

	_, err := svc.TransitionState(order.ID, models.OrderStateShipped, "", "tester")
	require.True(t, models.IsValidationError(err))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderStateConfirmed, reloaded.State)
	assert.Nil(t, reloaded.ShipDate)
}

func TestTransitionState_ShippedSetsShipDateAndHistory(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateConfirmed, withTracking())

	updated, err := svc.TransitionState(order.ID, models.OrderStateShipped, "carrier picked up", "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateShipped, updated.State)
	require.NotNil(t, updated.ShipDate)

	history, err := svc.History(order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(models.OrderStateConfirmed), history[0].PreviousStatus)
	assert.Equal(t, string(models.OrderStateShipped), history[0].NewStatus)
	assert.Equal(t, "carrier picked up", history[0].Reason)
	assert.Equal(t, "ops@example.com", history[0].ChangedBy)
}

func TestTransitionState_ShippedStartsWarranties(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	warrantySvc := warranty.NewService(db, testutil.Logger(), config.WarrantyConfig{
		DefaultPeriodMonths: 3,
		MaxExtensions:       2,
		ExpiryCheckInterval: time.Hour,
	})
	svc.SetWarrantyCreator(warrantySvc)

	order := seedOrder(t, db, models.OrderStateConfirmed, withTracking())
	product := seedProduct(t, db, "WTY-SKU")

	item, err := svc.UpsertItem(order.ID, product.ID, 1, nil)
	require.NoError(t, err)

	unit := models.ProductUnit{
		ProductID:    product.ID,
		SerialNumber: models.StringPtr("SN-WTY-001"),
		Status:       models.UnitStatusInStock,
	}
	require.NoError(t, db.Create(&unit).Error)
	require.NoError(t, svc.AssignUnits(item.ID, []uint{unit.ID}, "tester"))

	_, err = svc.TransitionState(order.ID, models.OrderStateShipped, "", "tester")
	require.NoError(t, err)

	var w models.Warranty
	require.NoError(t, db.Where("product_unit_id = ?", unit.ID).First(&w).Error)
	assert.Equal(t, models.WarrantyStatusNotRegistered, w.Status)
	assert.Equal(t, 3, w.WarrantyPeriod)
	require.NotNil(t, w.OrderID)
	assert.Equal(t, order.ID, *w.OrderID)
}

func TestTransitionState_ReturnedReleasesUnits(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateCreated, withTracking())
	product := seedProduct(t, db, "RET-SKU")

	item, err := svc.UpsertItem(order.ID, product.ID, 2, nil)
	require.NoError(t, err)

	var unitIDs []uint
	for _, serial := range []string{"SN-RET-001", "SN-RET-002"} {
		unit := models.ProductUnit{
			ProductID:    product.ID,
			SerialNumber: models.StringPtr(serial),
			Status:       models.UnitStatusInStock,
		}
		require.NoError(t, db.Create(&unit).Error)
		unitIDs = append(unitIDs, unit.ID)
	}
	require.NoError(t, svc.AssignUnits(item.ID, unitIDs, "tester"))

	var assigned models.OrderItem
	require.NoError(t, db.First(&assigned, item.ID).Error)
	assert.Equal(t, models.OrderItemStatusAssigned, assigned.Status)

	for _, to := range []models.OrderState{
		models.OrderStateConfirmed,
		models.OrderStateShipped,
		models.OrderStateDelivered,
		models.OrderStateReturned,
	} {
		_, err := svc.TransitionState(order.ID, to, "", "tester")
		require.NoError(t, err, "transition to %s", to)
	}

	var stillAssigned int64
	require.NoError(t, db.Model(&models.ProductUnit{}).
		Where("order_item_id IS NOT NULL").
		Count(&stillAssigned).Error)
	assert.Zero(t, stillAssigned, "no unit may stay assigned after a return")

	var units []models.ProductUnit
	require.NoError(t, db.Find(&units).Error)
	for _, u := range units {
		assert.Equal(t, models.UnitStatusInStock, u.Status)
	}

	require.NoError(t, db.First(&assigned, item.ID).Error)
	assert.Equal(t, models.OrderItemStatusReturned, assigned.Status)
}

func TestUpsertItem_DerivesTotalsFromPriceData(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateCreated, nil)
	product := seedProduct(t, db, "PRICE-SKU")

	item, err := svc.UpsertItem(order.ID, product.ID, 1, models.JSONB{
		"currency": "CAD",
		"totals": map[string]interface{}{
			"product":     "279.00",
			"shipping":    "10.00",
			"tax":         "37.57",
			"grand_total": "326.57",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "326.57", item.TotalPrice.StringFixed(2))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, "326.57", reloaded.OrderTotal.StringFixed(2))
}

func TestUpsertItem_RejectedAfterConfirmation(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateShipped, withTracking())
	product := seedProduct(t, db, "LATE-SKU")

	_, err := svc.UpsertItem(order.ID, product.ID, 1, nil)
	assert.True(t, models.IsValidationError(err))
}

func TestAssignUnits_RejectsWrongProductAndBusyUnits(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())
	order := seedOrder(t, db, models.OrderStateCreated, nil)
	product := seedProduct(t, db, "ASSIGN-SKU")
	other := seedProduct(t, db, "OTHER-SKU")

	item, err := svc.UpsertItem(order.ID, product.ID, 1, nil)
	require.NoError(t, err)

	foreign := models.ProductUnit{ProductID: other.ID, Status: models.UnitStatusInStock}
	require.NoError(t, db.Create(&foreign).Error)
	err = svc.AssignUnits(item.ID, []uint{foreign.ID}, "tester")
	assert.True(t, models.IsValidationError(err))

	sold := models.ProductUnit{ProductID: product.ID, Status: models.UnitStatusSold}
	require.NoError(t, db.Create(&sold).Error)
	err = svc.AssignUnits(item.ID, []uint{sold.ID}, "tester")
	assert.True(t, models.IsValidationError(err))
}
