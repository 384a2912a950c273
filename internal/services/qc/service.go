package qc

import (
	"errors"
	"fmt"
	"time"

	"github.com/replugit/opsgo/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReceiptProcessor posts an approved quantity into stock. Wired to the
// inventory service at startup.
type ReceiptProcessor interface {
	ProcessReceipt(tx *gorm.DB, receiptID uint, serials []string) (*models.InventoryReceipt, error)
}

// Service manages the quality control gate between receiving and stock
type Service struct {
	db       *gorm.DB
	log      *logrus.Logger
	receipts ReceiptProcessor
}

// NewService creates a new QC service
func NewService(db *gorm.DB, log *logrus.Logger, receipts ReceiptProcessor) *Service {
	return &Service{db: db, log: log, receipts: receipts}
}

// Get loads a QC record
func (s *Service) Get(id string) (*models.QualityControlRecord, error) {
	var record models.QualityControlRecord
	if err := s.db.Preload("BatchItem").Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Pending lists records awaiting a verdict
func (s *Service) Pending() ([]models.QualityControlRecord, error) {
	var records []models.QualityControlRecord
	err := s.db.Where("status = ?", models.QCStatusPending).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// CreateRecordForBatchItem opens a pending inspection for a batch item.
// Runs inside the batch processing transaction.
func (s *Service) CreateRecordForBatchItem(tx *gorm.DB, item *models.BatchItem, locationID uint) (*models.QualityControlRecord, error) {
	if tx == nil {
		tx = s.db
	}

	var existing models.QualityControlRecord
	err := tx.Where("batch_item_id = ?", item.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record := models.QualityControlRecord{
		BatchItemID:     item.ID,
		ProductFamilyID: item.ProductFamilyID,
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		LocationID:      &locationID,
		Reference:       fmt.Sprintf("batch-item-%d", item.ID),
		Status:          models.QCStatusPending,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create QC record: %w", err)
	}
	return &record, nil
}

// CompleteProcess records the inspection verdict. Passed quantity posts
// into stock through exactly one inventory receipt; failed creates
// nothing. Partially passed reads the approved count from metadata.
// Verdict, receipt and stock posting commit together, so a failed
// posting leaves the record pending.
func (s *Service) CompleteProcess(recordID string, status models.QCStatus, notes string, metadata models.JSONB, completedBy *uint) (*models.QualityControlRecord, error) {
	if !models.ValidQCVerdict(status) {
		return nil, models.NewValidationError(fmt.Sprintf("invalid QC verdict %q", status))
	}

	var record models.QualityControlRecord
	if err := s.db.Preload("BatchItem").Where("id = ?", recordID).First(&record).Error; err != nil {
		return nil, err
	}
	if record.IsCompleted() {
		return nil, models.NewValidationError("QC record is already completed")
	}

	approved := record.Quantity
	if status == models.QCStatusPartiallyPassed {
		n, err := passedQuantity(metadata, record.Quantity)
		if err != nil {
			return nil, err
		}
		approved = n
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		record.Status = status
		record.Notes = notes
		record.Metadata = metadata
		record.CompletedBy = completedBy
		record.CompletedAt = &now
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to save QC verdict: %w", err)
		}

		if status == models.QCStatusFailed {
			return nil
		}

		receipt := models.InventoryReceipt{
			ProductFamilyID:    record.ProductFamilyID,
			ProductID:          record.ProductID,
			Quantity:           approved,
			LocationID:         record.LocationID,
			Reference:          record.Reference,
			RequiresUnitQC:     false,
			CreateProductUnits: true,
			CreatedBy:          completedBy,
		}
		if record.BatchItem != nil {
			receipt.BatchID = &record.BatchItem.BatchID
			receipt.CreateProductUnits = record.BatchItem.CreateProductUnits
			receipt.UnitCost = record.BatchItem.UnitCost

			var batch models.ReceiptBatch
			if err := tx.First(&batch, record.BatchItem.BatchID).Error; err == nil {
				receipt.BatchCode = batch.BatchCode
			}
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return fmt.Errorf("failed to create post-QC receipt: %w", err)
		}

		// Link the receipt back to the batch item only once
		if record.BatchItem != nil && record.BatchItem.InventoryReceiptID == nil {
			if err := tx.Model(record.BatchItem).
				Update("inventory_receipt_id", receipt.ID).Error; err != nil {
				return fmt.Errorf("failed to link receipt to batch item: %w", err)
			}
		}

		if s.receipts != nil {
			serials := serialsFromBatchItem(record.BatchItem, approved)
			if _, err := s.receipts.ProcessReceipt(tx, receipt.ID, serials); err != nil {
				return fmt.Errorf("failed to process post-QC receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"qc_record": record.ID,
		"status":    status,
		"approved":  approved,
	}).Info("QC inspection completed")

	return &record, nil
}

// passedQuantity extracts and validates the partial-pass count
func passedQuantity(metadata models.JSONB, total int) (int, error) {
	raw, ok := metadata[models.MetadataKeyPassedQuantity]
	if !ok {
		return 0, models.NewValidationError("partially passed verdict requires passed_quantity metadata")
	}

	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	default:
		return 0, models.NewValidationError("passed_quantity must be a number")
	}

	if n < 1 || n >= total {
		return 0, models.NewValidationError(fmt.Sprintf(
			"passed_quantity must be between 1 and %d", total-1))
	}
	return n, nil
}

// serialsFromBatchItem pulls the unit serial out of item_details for
// quantity-1 items so the spawned unit keeps its identity.
func serialsFromBatchItem(item *models.BatchItem, approved int) []string {
	if item == nil || approved != 1 {
		return nil
	}
	if serial := item.ItemDetails.GetString("serial"); serial != "" {
		return []string{serial}
	}
	return nil
}
