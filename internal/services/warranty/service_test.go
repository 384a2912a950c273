package warranty

import (
	"testing"
	"time"

	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger(), config.WarrantyConfig{
		DefaultPeriodMonths: 3,
		MaxExtensions:       2,
		ExpiryCheckInterval: time.Hour,
	})
	return svc, db
}

func seedUnit(t *testing.T, db *gorm.DB, serial string) *models.ProductUnit {
	t.Helper()
	product := models.Product{Name: "Covered Laptop", SKU: models.StringPtr("CV-" + serial)}
	require.NoError(t, db.Create(&product).Error)

	unit := models.ProductUnit{
		ProductID:      product.ID,
		SerialNumber:   models.StringPtr(serial),
		ActivationCode: "AB12",
		Status:         models.UnitStatusInStock,
	}
	require.NoError(t, db.Create(&unit).Error)
	return &unit
}

func seedWarranty(t *testing.T, svc *Service, db *gorm.DB, serial string) *models.Warranty {
	t.Helper()
	unit := seedUnit(t, db, serial)
	w, err := svc.CreateOrUpdate(nil, unit.ID, nil, nil, time.Now().UTC())
	require.NoError(t, err)
	return w
}

func TestCreateOrUpdate_NewWarrantyGetsDefaultsAndLog(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-NEW-001")

	assert.Equal(t, models.WarrantyStatusNotRegistered, w.Status)
	assert.Equal(t, 3, w.WarrantyPeriod)
	assert.Equal(t, 2, w.MaxExtensions)
	require.NotNil(t, w.WarrantyExpirationDate)
	assert.WithinDuration(t,
		w.PurchaseDate.AddDate(0, 0, 90), *w.WarrantyExpirationDate, time.Second,
		"expiration is purchase date plus 30 days per coverage month")

	logs, err := svc.Logs(w.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.WarrantyLogCreated, logs[0].Action)
}

func TestCreateOrUpdate_ExistingWarrantyKeepsPeriods(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-KEEP-001")

	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)
	_, err = svc.Extend(w.ID, 2, "goodwill", "tester")
	require.NoError(t, err)

	customer := models.Customer{Name: "Owner", Email: models.StringPtr("owner@example.com")}
	require.NoError(t, db.Create(&customer).Error)

	again, err := svc.CreateOrUpdate(nil, w.ProductUnitID, &customer.ID, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
	assert.Equal(t, 2, again.ExtendedPeriod, "re-linking must not reset extensions")
	assert.Equal(t, models.WarrantyStatusActive, again.Status)
	require.NotNil(t, again.CustomerID)
	assert.Equal(t, customer.ID, *again.CustomerID)
}

func TestActivate_ChecksCodeCaseInsensitively(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-ACT-001")

	_, err := svc.Activate("SN-ACT-001", "XXXX", nil, "")
	assert.True(t, models.IsValidationError(err))

	var untouched models.Warranty
	require.NoError(t, db.First(&untouched, w.ID).Error)
	assert.Equal(t, models.WarrantyStatusNotRegistered, untouched.Status)

	activated, err := svc.Activate("SN-ACT-001", "ab12", nil, "registered online")
	require.NoError(t, err)
	assert.Equal(t, models.WarrantyStatusActive, activated.Status)

	require.NoError(t, db.First(&untouched, w.ID).Error)
	assert.NotNil(t, untouched.RegisteredAt)
}

func TestTransitionStatus_TableAndNoOp(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-TR-001")

	// not_registered -> expired is not allowed
	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusExpired, "", "tester", false)
	assert.True(t, models.IsValidationError(err))

	_, err = svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)

	// Repeating the current status is a silent no-op with no new log
	logsBefore, err := svc.Logs(w.ID)
	require.NoError(t, err)
	same, err := svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)
	assert.Equal(t, models.WarrantyStatusActive, same.Status)
	logsAfter, err := svc.Logs(w.ID)
	require.NoError(t, err)
	assert.Equal(t, len(logsBefore), len(logsAfter))

	// void is terminal
	_, err = svc.TransitionStatus(w.ID, models.WarrantyStatusVoid, "fraud", "tester", false)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	assert.True(t, models.IsValidationError(err))
}

func TestTransitionStatus_AdminEditAction(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-ADM-001")

	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusVoid, "manual fix", "admin", true)
	require.NoError(t, err)

	logs, err := svc.Logs(w.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.WarrantyLogAdminEdit, logs[0].Action)
	assert.Equal(t, "admin", logs[0].PerformedBy)
}

func TestExtend_ValidatesMonthsAndCap(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-EXT-001")
	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)

	_, err = svc.Extend(w.ID, 0, "", "tester")
	assert.True(t, models.IsValidationError(err))
	_, err = svc.Extend(w.ID, -3, "", "tester")
	assert.True(t, models.IsValidationError(err))

	// period 3, max 2 extensions: total coverage may not exceed 6 months
	_, err = svc.Extend(w.ID, 4, "", "tester")
	assert.True(t, models.IsValidationError(err))

	extended, err := svc.Extend(w.ID, 3, "loyalty bonus", "tester")
	require.NoError(t, err)
	assert.Equal(t, 3, extended.ExtendedPeriod)
	assert.True(t, extended.IsExtended)
	require.NotNil(t, extended.WarrantyExpirationDate)
	assert.WithinDuration(t,
		extended.PurchaseDate.AddDate(0, 0, 180), *extended.WarrantyExpirationDate, time.Second)

	// Cap is now exhausted
	_, err = svc.Extend(w.ID, 1, "", "tester")
	assert.True(t, models.IsValidationError(err))

	logs, err := svc.Logs(w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WarrantyLogExtended, logs[0].Action)
}

func TestExtend_UnregisteredWithinCoverage(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-EXU-001")

	// Sold but never registered; coverage still runs on the purchase date
	extended, err := svc.Extend(w.ID, 1, "retail promo", "tester")
	require.NoError(t, err)
	assert.Equal(t, models.WarrantyStatusNotRegistered, extended.Status)
	assert.Equal(t, 1, extended.ExtendedPeriod)
	require.NotNil(t, extended.WarrantyExpirationDate)
	assert.WithinDuration(t,
		extended.PurchaseDate.AddDate(0, 0, 120), *extended.WarrantyExpirationDate, time.Second)
}

func TestExtend_RejectsLapsedCoverage(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-EXL-001")

	past := time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.Warranty{}).Where("id = ?", w.ID).
		Update("warranty_expiration_date", past).Error)

	_, err := svc.Extend(w.ID, 1, "", "tester")
	assert.True(t, models.IsValidationError(err), "lapsed coverage cannot be extended")
}

func TestActivate_VoidWarrantyLeavesNoTrace(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-VOID-01")
	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusVoid, "fraud", "admin", false)
	require.NoError(t, err)

	customer := models.Customer{Name: "Late Buyer", Email: models.StringPtr("late@example.com")}
	require.NoError(t, db.Create(&customer).Error)

	_, err = svc.Activate("SN-VOID-01", "AB12", &customer.ID, "second-hand purchase")
	assert.True(t, models.IsValidationError(err))

	var reloaded models.Warranty
	require.NoError(t, db.First(&reloaded, w.ID).Error)
	assert.Equal(t, models.WarrantyStatusVoid, reloaded.Status)
	assert.Nil(t, reloaded.CustomerID, "a failed activation must not attach the customer")
	assert.Empty(t, reloaded.Comments)
}

func TestReset_ClearsRegistrationAndExtensions(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-RST-001")

	// Unregistered warranties cannot be reset
	_, err := svc.Reset(w.ID, "", "tester", true)
	assert.True(t, models.IsValidationError(err))

	customer := models.Customer{Name: "Owner", Email: models.StringPtr("reset@example.com")}
	require.NoError(t, db.Create(&customer).Error)
	require.NoError(t, db.Model(&models.Warranty{}).Where("id = ?", w.ID).
		Update("customer_id", customer.ID).Error)

	_, err = svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)
	_, err = svc.Extend(w.ID, 2, "", "tester")
	require.NoError(t, err)

	reset, err := svc.Reset(w.ID, "ownership change", "admin", false)
	require.NoError(t, err)
	assert.Equal(t, models.WarrantyStatusNotRegistered, reset.Status)
	assert.Zero(t, reset.ExtendedPeriod)
	assert.False(t, reset.IsExtended)

	var reloaded models.Warranty
	require.NoError(t, db.First(&reloaded, w.ID).Error)
	assert.Nil(t, reloaded.RegisteredAt)
	assert.Nil(t, reloaded.CustomerID, "keepCustomer false detaches the customer")
	require.NotNil(t, reloaded.WarrantyExpirationDate)
	assert.WithinDuration(t,
		reloaded.PurchaseDate.AddDate(0, 0, 90), *reloaded.WarrantyExpirationDate, time.Second,
		"expiration recomputes from the base period")

	logs, err := svc.Logs(w.ID)
	require.NoError(t, err)
	resetLogs := 0
	for _, entry := range logs {
		if entry.Action == models.WarrantyLogReset {
			resetLogs++
		}
	}
	assert.Equal(t, 1, resetLogs)
}

func TestReset_KeepCustomer(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-RSTK-01")

	customer := models.Customer{Name: "Keeper", Email: models.StringPtr("keeper@example.com")}
	require.NoError(t, db.Create(&customer).Error)
	require.NoError(t, db.Model(&models.Warranty{}).Where("id = ?", w.ID).
		Update("customer_id", customer.ID).Error)
	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)

	_, err = svc.Reset(w.ID, "", "admin", true)
	require.NoError(t, err)

	var reloaded models.Warranty
	require.NoError(t, db.First(&reloaded, w.ID).Error)
	require.NotNil(t, reloaded.CustomerID)
	assert.Equal(t, customer.ID, *reloaded.CustomerID)
}

func TestCheckAndExpire(t *testing.T) {
	svc, db := newTestService(t)
	w := seedWarranty(t, svc, db, "SN-EXP-001")
	_, err := svc.TransitionStatus(w.ID, models.WarrantyStatusActive, "", "tester", false)
	require.NoError(t, err)

	// Push the expiration into the past
	past := time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.Warranty{}).Where("id = ?", w.ID).
		Update("warranty_expiration_date", past).Error)

	count, err := svc.CheckAndExpire()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var reloaded models.Warranty
	require.NoError(t, db.First(&reloaded, w.ID).Error)
	assert.Equal(t, models.WarrantyStatusExpired, reloaded.Status)

	// Second sweep finds nothing
	count, err = svc.CheckAndExpire()
	require.NoError(t, err)
	assert.Zero(t, count)
}
