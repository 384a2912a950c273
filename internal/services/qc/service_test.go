package qc

import (
	"errors"
	"testing"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/inventory"
	"github.com/replugit/opsgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	loc   *models.Location
	prod  *models.Product
	batch *models.ReceiptBatch
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	log := testutil.Logger()
	svc := NewService(db, log, inventory.NewService(db, log))

	loc := models.Location{Name: "Main", Code: "WH1", DefaultLocation: true}
	require.NoError(t, db.Create(&loc).Error)
	prod := models.Product{Name: "Refurb Laptop", SKU: models.StringPtr("QC-SKU")}
	require.NoError(t, db.Create(&prod).Error)
	batch := models.ReceiptBatch{LocationID: loc.ID, Status: models.BatchStatusProcessing}
	require.NoError(t, db.Create(&batch).Error)

	return &fixture{svc: svc, db: db, loc: &loc, prod: &prod, batch: &batch}
}

func (f *fixture) newRecord(t *testing.T, quantity int, details models.JSONB) *models.QualityControlRecord {
	t.Helper()
	item := models.BatchItem{
		BatchID:            f.batch.ID,
		ProductID:          &f.prod.ID,
		Quantity:           quantity,
		RequiresUnitQC:     true,
		CreateProductUnits: true,
		ItemDetails:        details,
	}
	require.NoError(t, f.db.Create(&item).Error)

	record, err := f.svc.CreateRecordForBatchItem(nil, &item, f.loc.ID)
	require.NoError(t, err)
	return record
}

func TestCreateRecordForBatchItem_Idempotent(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 1, nil)

	item := models.BatchItem{ID: record.BatchItemID}
	again, err := f.svc.CreateRecordForBatchItem(nil, &item, f.loc.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.QualityControlRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCompleteProcess_RejectsInvalidVerdicts(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 1, nil)

	_, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusPending, "", nil, nil)
	assert.True(t, models.IsValidationError(err))
	_, err = f.svc.CompleteProcess(record.ID.String(), models.QCStatus("approved"), "", nil, nil)
	assert.True(t, models.IsValidationError(err))
}

func TestCompleteProcess_PassedCreatesOneProcessedReceipt(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 1, models.JSONB{"serial": "SN-QC-PASS"})

	completed, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusPassed, "clean", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QCStatusPassed, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	var receipts []models.InventoryReceipt
	require.NoError(t, f.db.Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].IsProcessed)
	assert.Equal(t, 1, receipts[0].Quantity)
	assert.Equal(t, f.batch.BatchCode, receipts[0].BatchCode)

	var item models.BatchItem
	require.NoError(t, f.db.First(&item, record.BatchItemID).Error)
	require.NotNil(t, item.InventoryReceiptID)
	assert.Equal(t, receipts[0].ID, *item.InventoryReceiptID)

	var unit models.ProductUnit
	require.NoError(t, f.db.Where("serial_number = ?", "SN-QC-PASS").First(&unit).Error)

	// Completed records cannot be completed again
	_, err = f.svc.CompleteProcess(record.ID.String(), models.QCStatusFailed, "", nil, nil)
	assert.True(t, models.IsValidationError(err))
}

func TestCompleteProcess_FamilyOnlyItemPostsStock(t *testing.T) {
	f := setup(t)

	family := models.ProductFamily{SKU: "LAT5400", Name: "Dell Latitude 5400"}
	require.NoError(t, f.db.Create(&family).Error)
	variant := models.Product{Name: "Latitude 5400 i5", SKU: models.StringPtr("LAT5400-I5"), FamilyID: &family.ID}
	require.NoError(t, f.db.Create(&variant).Error)

	item := models.BatchItem{
		BatchID:            f.batch.ID,
		ProductFamilyID:    &family.ID,
		Quantity:           1,
		RequiresUnitQC:     true,
		CreateProductUnits: true,
		ItemDetails:        models.JSONB{"serial": "SN-FAM-1"},
	}
	require.NoError(t, f.db.Create(&item).Error)
	record, err := f.svc.CreateRecordForBatchItem(nil, &item, f.loc.ID)
	require.NoError(t, err)

	completed, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusPassed, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QCStatusPassed, completed.Status)

	// The receipt resolved to the family's variant and was processed
	var receipts []models.InventoryReceipt
	require.NoError(t, f.db.Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].IsProcessed)
	require.NotNil(t, receipts[0].ProductID)
	assert.Equal(t, variant.ID, *receipts[0].ProductID)

	var unit models.ProductUnit
	require.NoError(t, f.db.Where("serial_number = ?", "SN-FAM-1").First(&unit).Error)
	assert.Equal(t, variant.ID, unit.ProductID)

	var stock models.StockLevel
	require.NoError(t, f.db.Where("product_id = ?", variant.ID).First(&stock).Error)
	assert.Equal(t, 1, stock.Quantity)
}

func TestCompleteProcess_FailedCreatesNothing(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 2, nil)

	completed, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusFailed, "water damage", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QCStatusFailed, completed.Status)

	var receipts int64
	require.NoError(t, f.db.Model(&models.InventoryReceipt{}).Count(&receipts).Error)
	assert.Zero(t, receipts)

	var item models.BatchItem
	require.NoError(t, f.db.First(&item, record.BatchItemID).Error)
	assert.Nil(t, item.InventoryReceiptID)
}

type failingProcessor struct{}

func (failingProcessor) ProcessReceipt(tx *gorm.DB, receiptID uint, serials []string) (*models.InventoryReceipt, error) {
	return nil, errors.New("stock posting unavailable")
}

func TestCompleteProcess_VerdictRollsBackWhenPostingFails(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 1, nil)

	broken := NewService(f.db, testutil.Logger(), failingProcessor{})
	_, err := broken.CompleteProcess(record.ID.String(), models.QCStatusPassed, "", nil, nil)
	require.Error(t, err)

	var reloaded models.QualityControlRecord
	require.NoError(t, f.db.Where("id = ?", record.ID).First(&reloaded).Error)
	assert.Equal(t, models.QCStatusPending, reloaded.Status, "verdict must not commit without the stock posting")
	assert.Nil(t, reloaded.CompletedAt)

	var receipts int64
	require.NoError(t, f.db.Model(&models.InventoryReceipt{}).Count(&receipts).Error)
	assert.Zero(t, receipts, "the orphaned receipt rolls back with the verdict")
}

func TestCompleteProcess_PartialUsesPassedQuantity(t *testing.T) {
	f := setup(t)
	record := f.newRecord(t, 5, nil)

	// Missing metadata
	_, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusPartiallyPassed, "", nil, nil)
	assert.True(t, models.IsValidationError(err))

	// Bounds: must be between 1 and quantity-1
	for _, bad := range []interface{}{float64(0), float64(5), float64(7), "three"} {
		_, err = f.svc.CompleteProcess(record.ID.String(), models.QCStatusPartiallyPassed, "",
			models.JSONB{models.MetadataKeyPassedQuantity: bad}, nil)
		assert.True(t, models.IsValidationError(err), "passed_quantity %v must be rejected", bad)
	}

	completed, err := f.svc.CompleteProcess(record.ID.String(), models.QCStatusPartiallyPassed, "two DOA",
		models.JSONB{models.MetadataKeyPassedQuantity: float64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QCStatusPartiallyPassed, completed.Status)

	var receipts []models.InventoryReceipt
	require.NoError(t, f.db.Find(&receipts).Error)
	require.Len(t, receipts, 1)
	assert.Equal(t, 3, receipts[0].Quantity, "receipt carries only the approved quantity")

	var stock models.StockLevel
	require.NoError(t, f.db.Where("product_id = ?", f.prod.ID).First(&stock).Error)
	assert.Equal(t, 3, stock.Quantity)
}
