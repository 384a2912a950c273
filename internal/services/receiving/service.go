package receiving

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IssueSeverity grades conversion problems
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Issue is one per-row problem found while converting a manifest.
// Error-severity issues mean the row produced no batch item.
type Issue struct {
	ItemID   uint          `json:"item_id"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// QCRecordCreator opens inspections for QC-flagged batch items. Wired
// to the QC service at startup.
type QCRecordCreator interface {
	CreateRecordForBatchItem(tx *gorm.DB, item *models.BatchItem, locationID uint) (*models.QualityControlRecord, error)
}

// ReceiptProcessor posts batch items straight into stock. Wired to the
// inventory service at startup.
type ReceiptProcessor interface {
	ProcessReceipt(tx *gorm.DB, receiptID uint, serials []string) (*models.InventoryReceipt, error)
}

// Service manages receipt batches and the manifest conversion pipeline
type Service struct {
	db       *gorm.DB
	log      *logrus.Logger
	qc       QCRecordCreator
	receipts ReceiptProcessor
}

// NewService creates a new receiving service
func NewService(db *gorm.DB, log *logrus.Logger, qc QCRecordCreator, receipts ReceiptProcessor) *Service {
	return &Service{db: db, log: log, qc: qc, receipts: receipts}
}

// GetBatch loads a batch with its items
func (s *Service) GetBatch(id uint) (*models.ReceiptBatch, error) {
	var batch models.ReceiptBatch
	if err := s.db.Preload("Items").First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// CreateBatchFromManifest converts an uploaded manifest into a receipt
// batch. Every manifest row becomes exactly one batch item with
// quantity 1; item_details carries the full row so nothing from the
// source list is lost. Rows whose product family cannot be resolved are
// reported as error issues and skipped; lesser problems become warning
// issues on an otherwise converted row.
func (s *Service) CreateBatchFromManifest(manifestID, locationID uint, createdBy *uint) (*models.ReceiptBatch, []Issue, error) {
	var manifest models.Manifest
	if err := s.db.Preload("Items").First(&manifest, manifestID).Error; err != nil {
		return nil, nil, err
	}
	if manifest.ReceiptBatchID != nil {
		return nil, nil, models.NewValidationError("manifest is already converted to a batch")
	}
	if len(manifest.Items) == 0 {
		return nil, nil, models.NewValidationError("manifest has no rows to convert")
	}

	var issues []Issue
	var batch models.ReceiptBatch

	err := s.db.Transaction(func(tx *gorm.DB) error {
		batch = models.ReceiptBatch{
			Reference:        manifest.ManifestNumber,
			LocationID:       locationID,
			CreatedBy:        createdBy,
			Status:           models.BatchStatusPending,
			ShippingTracking: manifest.TrackingNumber,
			ShippingCarrier:  manifest.Carrier,
			SellerInfo: models.JSONB{
				"supplier_name": manifest.SupplierName,
			},
		}
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		converted := 0
		for i := range manifest.Items {
			row := &manifest.Items[i]

			familyID, productID, rowIssues := s.resolveRow(tx, row)
			issues = append(issues, rowIssues...)
			if familyID == nil && productID == nil {
				now := time.Now().UTC()
				if err := tx.Model(row).Updates(map[string]interface{}{
					"status":        models.ManifestItemStatusError,
					"error_message": "no matching product family",
					"processed_at":  now,
				}).Error; err != nil {
					return err
				}
				continue
			}

			item := models.BatchItem{
				BatchID:         batch.ID,
				ProductFamilyID: familyID,
				ProductID:       productID,
				Quantity:        1,
				UnitCost:        row.UnitPrice,
				Destination:     models.DestinationPending,
				RequiresUnitQC:  true,
				ItemDetails:     rowDetails(row),
				SourceType:      "manifest_item",
				SourceID:        fmt.Sprintf("%d", row.ID),
			}
			// Savepoint per row: a bad row must not poison the
			// surrounding batch transaction on strict drivers.
			if err := tx.Transaction(func(tx *gorm.DB) error {
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				now := time.Now().UTC()
				return tx.Model(row).Updates(map[string]interface{}{
					"status":        models.ManifestItemStatusProcessed,
					"batch_item_id": item.ID,
					"processed_at":  now,
				}).Error
			}); err != nil {
				issues = append(issues, Issue{
					ItemID:   row.ID,
					Severity: SeverityError,
					Message:  fmt.Sprintf("failed to create batch item: %v", err),
				})
				continue
			}
			converted++
		}

		if converted == 0 {
			return models.NewValidationError("no manifest rows could be converted")
		}

		return tx.Model(&manifest).Updates(map[string]interface{}{
			"receipt_batch_id": batch.ID,
			"status":           models.ManifestStatusProcessing,
		}).Error
	})
	if err != nil {
		return nil, issues, err
	}

	s.log.WithFields(logrus.Fields{
		"manifest_id": manifestID,
		"batch_id":    batch.ID,
		"issues":      len(issues),
	}).Info("Converted manifest to batch")

	if err := s.db.Preload("Items").First(&batch, batch.ID).Error; err != nil {
		return nil, issues, err
	}
	return &batch, issues, nil
}

// resolveRow finds the product family (and product, when the row carries
// a specific SKU) a manifest row belongs to.
func (s *Service) resolveRow(tx *gorm.DB, row *models.ManifestItem) (familyID, productID *uint, issues []Issue) {
	if row.ProductFamilyID != nil || row.ProductID != nil {
		return row.ProductFamilyID, row.ProductID, nil
	}
	if row.MappedFamilyID != nil {
		return row.MappedFamilyID, nil, nil
	}

	if row.SKU != "" {
		var product models.Product
		err := tx.Where("sku = ?", row.SKU).First(&product).Error
		if err == nil {
			return product.FamilyID, &product.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			issues = append(issues, Issue{
				ItemID:   row.ID,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("product lookup failed: %v", err),
			})
		}
	}

	if row.FamilySKU != "" {
		var family models.ProductFamily
		err := tx.Where("sku = ?", row.FamilySKU).First(&family).Error
		if err == nil {
			if row.SKU != "" {
				issues = append(issues, Issue{
					ItemID:   row.ID,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("sku %q not found, falling back to family %q", row.SKU, row.FamilySKU),
				})
			}
			return &family.ID, nil, issues
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			issues = append(issues, Issue{
				ItemID:   row.ID,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("family lookup failed: %v", err),
			})
		}
	}

	issues = append(issues, Issue{
		ItemID:   row.ID,
		Severity: SeverityError,
		Message:  fmt.Sprintf("row %d: no matching product family", row.RowNumber),
	})
	return nil, nil, issues
}

// rowDetails flattens a manifest row into the item_details bag. The
// original raw_data rides along untouched.
func rowDetails(row *models.ManifestItem) models.JSONB {
	details := models.JSONB{
		"row_number":      row.RowNumber,
		"barcode":         row.Barcode,
		"serial":          row.Serial,
		"manufacturer":    row.Manufacturer,
		"model":           row.Model,
		"processor":       row.Processor,
		"memory":          row.Memory,
		"storage":         row.Storage,
		"has_battery":     row.HasBattery,
		"battery":         row.Battery,
		"condition_grade": row.ConditionGrade,
		"condition_notes": row.ConditionNotes,
		"unit_price":      row.UnitPrice.String(),
		"quantity":        row.Quantity,
		"sku":             row.SKU,
		"family_sku":      row.FamilySKU,
	}
	if len(row.RawData) > 0 {
		var raw map[string]interface{}
		if err := json.Unmarshal(row.RawData, &raw); err == nil {
			details["raw_data"] = raw
		}
	}
	return details
}

// ProcessBatch routes every unhandled item: skip-flagged items are
// marked processed with no receipt, QC-flagged items get a pending
// inspection, everything else posts straight into stock. The batch
// completes only when every item is handled.
func (s *Service) ProcessBatch(batchID uint) (*models.ReceiptBatch, error) {
	var batch models.ReceiptBatch
	if err := s.db.Preload("Items").First(&batch, batchID).Error; err != nil {
		return nil, err
	}
	if !batch.CanBeProcessed() {
		return nil, models.NewValidationError(
			fmt.Sprintf("batch in status %s cannot be processed", batch.Status))
	}

	if err := s.db.Model(&batch).Update("status", models.BatchStatusProcessing).Error; err != nil {
		return nil, err
	}
	batch.Status = models.BatchStatusProcessing

	type pendingReceipt struct {
		id      uint
		serials []string
	}
	var toProcess []pendingReceipt

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range batch.Items {
			item := &batch.Items[i]
			if item.IsHandled() {
				continue
			}

			switch {
			case item.SkipInventoryReceipt:
				if err := tx.Model(item).Updates(map[string]interface{}{
					"processed":   true,
					"destination": models.DestinationPending,
				}).Error; err != nil {
					return err
				}

			case item.RequiresUnitQC:
				if _, err := s.qc.CreateRecordForBatchItem(tx, item, batch.LocationID); err != nil {
					return err
				}
				if err := tx.Model(item).
					Update("destination", models.DestinationQC).Error; err != nil {
					return err
				}

			default:
				receipt := models.InventoryReceipt{
					ProductFamilyID:    item.ProductFamilyID,
					ProductID:          item.ProductID,
					Quantity:           item.Quantity,
					LocationID:         &batch.LocationID,
					Reference:          batch.Reference,
					BatchCode:          batch.BatchCode,
					UnitCost:           item.UnitCost,
					CreateProductUnits: item.CreateProductUnits,
					BatchID:            &batch.ID,
					CreatedBy:          batch.CreatedBy,
				}
				if err := tx.Create(&receipt).Error; err != nil {
					return fmt.Errorf("failed to create receipt for item %d: %w", item.ID, err)
				}
				if err := tx.Model(item).Updates(map[string]interface{}{
					"inventory_receipt_id": receipt.ID,
					"destination":          models.DestinationInventory,
				}).Error; err != nil {
					return err
				}

				var serials []string
				if item.Quantity == 1 {
					if serial := item.ItemDetails.GetString("serial"); serial != "" {
						serials = []string{serial}
					}
				}
				toProcess = append(toProcess, pendingReceipt{id: receipt.ID, serials: serials})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range toProcess {
		if _, err := s.receipts.ProcessReceipt(nil, p.id, p.serials); err != nil {
			return nil, fmt.Errorf("failed to process receipt %d: %w", p.id, err)
		}
	}

	return s.finishIfComplete(batchID)
}

// finishIfComplete marks the batch completed when no unhandled or
// QC-pending items remain.
func (s *Service) finishIfComplete(batchID uint) (*models.ReceiptBatch, error) {
	var batch models.ReceiptBatch
	if err := s.db.Preload("Items").First(&batch, batchID).Error; err != nil {
		return nil, err
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		if item.IsHandled() {
			continue
		}
		if item.RequiresUnitQC {
			var count int64
			if err := s.db.Model(&models.QualityControlRecord{}).
				Where("batch_item_id = ?", item.ID).
				Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				// Inspection open, receipt arrives on verdict
				continue
			}
		}
		return &batch, nil
	}

	now := time.Now().UTC()
	if err := s.db.Model(&batch).Updates(map[string]interface{}{
		"status":       models.BatchStatusCompleted,
		"completed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	batch.Status = models.BatchStatusCompleted
	batch.CompletedAt = &now

	// Close out the source manifest if one fed this batch
	if err := s.db.Model(&models.Manifest{}).
		Where("receipt_batch_id = ?", batch.ID).
		Updates(map[string]interface{}{
			"status":       models.ManifestStatusReceived,
			"completed_at": now,
		}).Error; err != nil {
		return nil, err
	}

	s.log.WithField("batch_id", batch.ID).Info("Receipt batch completed")
	return &batch, nil
}

// CancelBatch cancels a pending or processing batch
func (s *Service) CancelBatch(batchID uint, reason string) (*models.ReceiptBatch, error) {
	var batch models.ReceiptBatch
	if err := s.db.First(&batch, batchID).Error; err != nil {
		return nil, err
	}
	if !batch.CanBeCancelled() {
		return nil, models.NewValidationError(
			fmt.Sprintf("batch in status %s cannot be cancelled", batch.Status))
	}

	updates := map[string]interface{}{"status": models.BatchStatusCancelled}
	if reason != "" {
		updates["notes"] = reason
	}
	if err := s.db.Model(&batch).Updates(updates).Error; err != nil {
		return nil, err
	}
	batch.Status = models.BatchStatusCancelled
	return &batch, nil
}

// Totals summarizes a batch's cost and quantity from its items
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalUnits int             `json:"total_units"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

// CalculateTotals sums batch items on demand and stores the cost on the
// batch row.
func (s *Service) CalculateTotals(batchID uint) (*Totals, error) {
	var items []models.BatchItem
	if err := s.db.Where("batch_id = ?", batchID).Find(&items).Error; err != nil {
		return nil, err
	}

	totals := Totals{TotalItems: len(items), TotalCost: decimal.Zero}
	for i := range items {
		totals.TotalUnits += items[i].Quantity
		totals.TotalCost = totals.TotalCost.Add(items[i].TotalCost)
	}

	if err := s.db.Model(&models.ReceiptBatch{}).
		Where("id = ?", batchID).
		Update("total_cost", totals.TotalCost).Error; err != nil {
		return nil, err
	}
	return &totals, nil
}

// CompleteIfDone re-checks batch completion, used after QC verdicts land
func (s *Service) CompleteIfDone(batchID uint) (*models.ReceiptBatch, error) {
	return s.finishIfComplete(batchID)
}
