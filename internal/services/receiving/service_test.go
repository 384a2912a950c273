package receiving

import (
	"testing"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/services/inventory"
	"github.com/replugit/opsgo/internal/services/qc"
	"github.com/replugit/opsgo/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPipeline(t *testing.T) (*Service, *qc.Service, *inventory.Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	log := testutil.Logger()
	inventorySvc := inventory.NewService(db, log)
	qcSvc := qc.NewService(db, log, inventorySvc)
	svc := NewService(db, log, qcSvc, inventorySvc)
	return svc, qcSvc, inventorySvc, db
}

func seedLocation(t *testing.T, db *gorm.DB) *models.Location {
	t.Helper()
	loc := models.Location{Name: "Main", Code: "WH1", DefaultLocation: true}
	require.NoError(t, db.Create(&loc).Error)
	return &loc
}

func seedCatalog(t *testing.T, db *gorm.DB) (*models.ProductFamily, *models.Product) {
	t.Helper()
	family := models.ProductFamily{SKU: "LAT5400", Name: "Dell Latitude 5400"}
	require.NoError(t, db.Create(&family).Error)
	product := models.Product{
		Name:     "Dell Latitude 5400 i5",
		SKU:      models.StringPtr("LAT5400-I5"),
		FamilyID: &family.ID,
	}
	require.NoError(t, db.Create(&product).Error)
	return &family, &product
}

func seedManifest(t *testing.T, db *gorm.DB, number string, items []models.ManifestItem) *models.Manifest {
	t.Helper()
	manifest := models.Manifest{
		ManifestNumber: number,
		SupplierName:   "Liquidation Co",
		Status:         models.ManifestStatusParsed,
	}
	require.NoError(t, db.Create(&manifest).Error)
	for i := range items {
		items[i].ManifestID = manifest.ID
		items[i].RowNumber = i + 1
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return &manifest
}

func TestCreateBatchFromManifest(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)
	_, product := seedCatalog(t, db)

	manifest := seedManifest(t, db, "MAN-CONV-1", []models.ManifestItem{
		{
			Serial:       "SN-A1",
			SKU:          "LAT5400-I5",
			Manufacturer: "Dell",
			Model:        "Latitude 5400",
			Processor:    "i5-8265U",
			Memory:       "8GB",
			UnitPrice:    decimal.RequireFromString("149.99"),
			Quantity:     1,
		},
		{
			Serial:    "SN-A2",
			FamilySKU: "LAT5400",
			Quantity:  1,
		},
		{
			Serial:   "SN-A3",
			SKU:      "UNKNOWN-SKU",
			Quantity: 1,
		},
	})

	batch, issues, err := svc.CreateBatchFromManifest(manifest.ID, loc.ID, nil)
	require.NoError(t, err)
	require.Len(t, batch.Items, 2, "only resolvable rows convert")

	errorIssues := 0
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errorIssues++
		}
	}
	assert.Equal(t, 1, errorIssues)

	// Every converted row is one quantity-1 item preserving the row data
	first := batch.Items[0]
	assert.Equal(t, 1, first.Quantity)
	require.NotNil(t, first.ProductID)
	assert.Equal(t, product.ID, *first.ProductID)
	assert.True(t, first.RequiresUnitQC)
	assert.Equal(t, "manifest_item", first.SourceType)
	assert.Equal(t, "SN-A1", first.ItemDetails.GetString("serial"))
	assert.Equal(t, "Dell", first.ItemDetails.GetString("manufacturer"))
	assert.Equal(t, "i5-8265U", first.ItemDetails.GetString("processor"))
	assert.Equal(t, "149.99", first.ItemDetails.GetString("unit_price"))

	second := batch.Items[1]
	require.NotNil(t, second.ProductFamilyID)
	assert.Nil(t, second.ProductID, "family-sku rows stay family-level")

	// Manifest rows track their fate
	var rows []models.ManifestItem
	require.NoError(t, db.Where("manifest_id = ?", manifest.ID).Order("row_number").Find(&rows).Error)
	assert.Equal(t, models.ManifestItemStatusProcessed, rows[0].Status)
	require.NotNil(t, rows[0].BatchItemID)
	assert.Equal(t, models.ManifestItemStatusProcessed, rows[1].Status)
	assert.Equal(t, models.ManifestItemStatusError, rows[2].Status)
	assert.Nil(t, rows[2].BatchItemID)

	var reloaded models.Manifest
	require.NoError(t, db.First(&reloaded, manifest.ID).Error)
	assert.Equal(t, models.ManifestStatusProcessing, reloaded.Status)
	require.NotNil(t, reloaded.ReceiptBatchID)
	assert.Equal(t, batch.ID, *reloaded.ReceiptBatchID)

	// Converting twice is rejected
	_, _, err = svc.CreateBatchFromManifest(manifest.ID, loc.ID, nil)
	assert.True(t, models.IsValidationError(err))
}

func TestCreateBatchFromManifest_NothingResolvableRollsBack(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)

	manifest := seedManifest(t, db, "MAN-BAD-1", []models.ManifestItem{
		{Serial: "SN-B1", SKU: "NOPE-1", Quantity: 1},
		{Serial: "SN-B2", SKU: "NOPE-2", Quantity: 1},
	})

	_, issues, err := svc.CreateBatchFromManifest(manifest.ID, loc.ID, nil)
	require.True(t, models.IsValidationError(err))
	assert.NotEmpty(t, issues)

	var batches int64
	require.NoError(t, db.Model(&models.ReceiptBatch{}).Count(&batches).Error)
	assert.Zero(t, batches, "failed conversion leaves no batch behind")

	var reloaded models.Manifest
	require.NoError(t, db.First(&reloaded, manifest.ID).Error)
	assert.Nil(t, reloaded.ReceiptBatchID)
}

func TestCreateBatchFromManifest_BadRowDoesNotPoisonBatch(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)
	_, product := seedCatalog(t, db)

	other := models.ProductFamily{SKU: "THINK-T480", Name: "Lenovo ThinkPad T480"}
	require.NoError(t, db.Create(&other).Error)

	manifest := seedManifest(t, db, "MAN-MIX-1", []models.ManifestItem{
		// The mismatched pairing fails batch item validation mid-batch
		{Serial: "SN-C1", ProductFamilyID: &other.ID, ProductID: &product.ID, Quantity: 1},
		{Serial: "SN-C2", SKU: "LAT5400-I5", Quantity: 1},
	})

	batch, issues, err := svc.CreateBatchFromManifest(manifest.ID, loc.ID, nil)
	require.NoError(t, err)
	require.Len(t, batch.Items, 1, "the bad row rolls back alone, later rows still convert")
	assert.Equal(t, "SN-C2", batch.Items[0].ItemDetails.GetString("serial"))

	errorIssues := 0
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errorIssues++
		}
	}
	assert.Equal(t, 1, errorIssues)

	var rows []models.ManifestItem
	require.NoError(t, db.Where("manifest_id = ?", manifest.ID).Order("row_number").Find(&rows).Error)
	assert.Nil(t, rows[0].BatchItemID)
	assert.NotEqual(t, models.ManifestItemStatusProcessed, rows[0].Status)
	assert.Equal(t, models.ManifestItemStatusProcessed, rows[1].Status)

	var reloaded models.Manifest
	require.NoError(t, db.First(&reloaded, manifest.ID).Error)
	require.NotNil(t, reloaded.ReceiptBatchID)
	assert.Equal(t, batch.ID, *reloaded.ReceiptBatchID)
}

func TestProcessBatch_RoutesItems(t *testing.T) {
	svc, qcSvc, _, db := newPipeline(t)
	loc := seedLocation(t, db)
	family, product := seedCatalog(t, db)

	batch := models.ReceiptBatch{
		Reference:  "LOT-17",
		LocationID: loc.ID,
		Status:     models.BatchStatusPending,
	}
	require.NoError(t, db.Create(&batch).Error)

	skipItem := models.BatchItem{
		BatchID:              batch.ID,
		ProductID:            &product.ID,
		Quantity:             1,
		SkipInventoryReceipt: true,
		CreateProductUnits:   true,
	}
	qcItem := models.BatchItem{
		BatchID:            batch.ID,
		ProductFamilyID:    &family.ID,
		ProductID:          &product.ID,
		Quantity:           1,
		RequiresUnitQC:     true,
		CreateProductUnits: true,
		ItemDetails:        models.JSONB{"serial": "SN-QC-1"},
	}
	plainItem := models.BatchItem{
		BatchID:            batch.ID,
		ProductID:          &product.ID,
		Quantity:           1,
		UnitCost:           decimal.RequireFromString("99.00"),
		CreateProductUnits: true,
		ItemDetails:        models.JSONB{"serial": "SN-PLAIN-1"},
	}
	for _, item := range []*models.BatchItem{&skipItem, &qcItem, &plainItem} {
		require.NoError(t, db.Create(item).Error)
	}

	processed, err := svc.ProcessBatch(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, processed.Status,
		"open inspections do not block completion, their receipts arrive on verdict")
	require.NotNil(t, processed.CompletedAt)

	// Skip item: handled, no receipt
	var skip models.BatchItem
	require.NoError(t, db.First(&skip, skipItem.ID).Error)
	assert.True(t, skip.Processed)
	assert.Nil(t, skip.InventoryReceiptID)

	// QC item: pending inspection, no receipt yet
	var inspected models.BatchItem
	require.NoError(t, db.First(&inspected, qcItem.ID).Error)
	assert.Equal(t, models.DestinationQC, inspected.Destination)
	assert.Nil(t, inspected.InventoryReceiptID)
	pending, err := qcSvc.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, qcItem.ID, pending[0].BatchItemID)

	// Plain item: receipt created and processed, unit spawned with its serial
	var direct models.BatchItem
	require.NoError(t, db.First(&direct, plainItem.ID).Error)
	require.NotNil(t, direct.InventoryReceiptID)
	var receipt models.InventoryReceipt
	require.NoError(t, db.First(&receipt, *direct.InventoryReceiptID).Error)
	assert.True(t, receipt.IsProcessed)
	assert.Equal(t, batch.BatchCode, receipt.BatchCode)

	var unit models.ProductUnit
	require.NoError(t, db.Where("serial_number = ?", "SN-PLAIN-1").First(&unit).Error)
	assert.Equal(t, models.UnitStatusInStock, unit.Status)

	var stock models.StockLevel
	require.NoError(t, db.Where("product_id = ? AND location_id = ?", product.ID, loc.ID).
		First(&stock).Error)
	assert.Equal(t, 1, stock.Quantity, "only the plain item posts into stock")

	// The QC verdict closes the loop with its own receipt and stock
	_, err = qcSvc.CompleteProcess(pending[0].ID.String(), models.QCStatusPassed, "all good", nil, nil)
	require.NoError(t, err)

	completed, err := svc.CompleteIfDone(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, completed.Status)

	var stockAfterQC models.StockLevel
	require.NoError(t, db.Where("product_id = ? AND location_id = ?", product.ID, loc.ID).
		First(&stockAfterQC).Error)
	assert.Equal(t, 2, stockAfterQC.Quantity)

	var qcUnit models.ProductUnit
	require.NoError(t, db.Where("serial_number = ?", "SN-QC-1").First(&qcUnit).Error)
}

func TestProcessBatch_RejectsFinishedBatch(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)

	batch := models.ReceiptBatch{
		LocationID: loc.ID,
		Status:     models.BatchStatusCompleted,
	}
	require.NoError(t, db.Create(&batch).Error)

	_, err := svc.ProcessBatch(batch.ID)
	assert.True(t, models.IsValidationError(err))
}

func TestCancelBatch(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)

	batch := models.ReceiptBatch{LocationID: loc.ID, Status: models.BatchStatusPending}
	require.NoError(t, db.Create(&batch).Error)

	cancelled, err := svc.CancelBatch(batch.ID, "wrong shipment")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCancelled, cancelled.Status)

	_, err = svc.CancelBatch(batch.ID, "")
	assert.True(t, models.IsValidationError(err), "cancelled batches stay cancelled")
}

func TestCalculateTotals(t *testing.T) {
	svc, _, _, db := newPipeline(t)
	loc := seedLocation(t, db)
	_, product := seedCatalog(t, db)

	batch := models.ReceiptBatch{LocationID: loc.ID, Status: models.BatchStatusPending}
	require.NoError(t, db.Create(&batch).Error)

	for _, cost := range []string{"100.00", "49.50"} {
		item := models.BatchItem{
			BatchID:   batch.ID,
			ProductID: &product.ID,
			Quantity:  2,
			UnitCost:  decimal.RequireFromString(cost),
		}
		require.NoError(t, db.Create(&item).Error)
	}

	totals, err := svc.CalculateTotals(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.TotalItems)
	assert.Equal(t, 4, totals.TotalUnits)
	assert.Equal(t, "299.00", totals.TotalCost.StringFixed(2))

	var reloaded models.ReceiptBatch
	require.NoError(t, db.First(&reloaded, batch.ID).Error)
	assert.Equal(t, "299.00", reloaded.TotalCost.StringFixed(2))
}
