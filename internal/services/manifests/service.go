package manifests

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/replugit/opsgo/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service manages manifest uploads
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new manifest service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: log}
}

// Get loads a manifest with its rows
func (s *Service) Get(id uint) (*models.Manifest, error) {
	var manifest models.Manifest
	if err := s.db.Preload("Items").First(&manifest, id).Error; err != nil {
		return nil, err
	}
	return &manifest, nil
}

// List returns manifests, newest first
func (s *Service) List(limit int) ([]models.Manifest, error) {
	query := s.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var list []models.Manifest
	err := query.Find(&list).Error
	return list, err
}

// UploadMeta carries the manifest header fields supplied on upload
type UploadMeta struct {
	ManifestNumber string
	Reference      string
	SupplierName   string
	TrackingNumber string
	Carrier        string
	FileName       string
	Notes          string
	UploadedBy     *uint
}

// columnAliases maps normalized CSV headers onto manifest item fields
var columnAliases = map[string]string{
	"barcode":         "barcode",
	"serial":          "serial",
	"serial number":   "serial",
	"serial_number":   "serial",
	"manufacturer":    "manufacturer",
	"brand":           "manufacturer",
	"model":           "model",
	"processor":       "processor",
	"cpu":             "processor",
	"memory":          "memory",
	"ram":             "memory",
	"storage":         "storage",
	"hdd":             "storage",
	"battery":         "battery",
	"condition":       "condition_grade",
	"condition grade": "condition_grade",
	"grade":           "condition_grade",
	"condition notes": "condition_notes",
	"notes":           "condition_notes",
	"price":           "unit_price",
	"unit price":      "unit_price",
	"unit_price":      "unit_price",
	"cost":            "unit_price",
	"qty":             "quantity",
	"quantity":        "quantity",
	"sku":             "sku",
	"family sku":      "family_sku",
	"family_sku":      "family_sku",
}

// CreateFromCSV parses an uploaded CSV into a manifest and its rows.
// The first record is the header; unrecognized columns still land in
// each row's raw_data so nothing from the source file is lost.
func (s *Service) CreateFromCSV(r io.Reader, meta UploadMeta) (*models.Manifest, error) {
	if meta.ManifestNumber == "" {
		return nil, models.NewValidationError("manifest number is required")
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("cannot read CSV header: %v", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var manifest models.Manifest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		manifest = models.Manifest{
			ManifestNumber: meta.ManifestNumber,
			Reference:      meta.Reference,
			SupplierName:   meta.SupplierName,
			TrackingNumber: meta.TrackingNumber,
			Carrier:        meta.Carrier,
			FileName:       meta.FileName,
			Notes:          meta.Notes,
			UploadedBy:     meta.UploadedBy,
			Status:         models.ManifestStatusUploaded,
		}
		if err := tx.Create(&manifest).Error; err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}

		rowNumber := 0
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return models.NewValidationError(
					fmt.Sprintf("cannot read CSV row %d: %v", rowNumber+1, err))
			}
			rowNumber++

			item := buildItem(manifest.ID, rowNumber, header, record)
			if err := tx.Create(item).Error; err != nil {
				return fmt.Errorf("failed to store row %d: %w", rowNumber, err)
			}
		}

		if rowNumber == 0 {
			return models.NewValidationError("CSV contains no data rows")
		}

		return tx.Model(&manifest).Update("status", models.ManifestStatusParsed).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"manifest_id":     manifest.ID,
		"manifest_number": manifest.ManifestNumber,
	}).Info("Parsed manifest upload")

	return s.Get(manifest.ID)
}

func buildItem(manifestID uint, rowNumber int, header, record []string) *models.ManifestItem {
	item := &models.ManifestItem{
		ManifestID: manifestID,
		RowNumber:  rowNumber,
		Quantity:   1,
		Status:     models.ManifestItemStatusPending,
	}

	raw := map[string]string{}
	for i, value := range record {
		if i >= len(header) {
			break
		}
		value = strings.TrimSpace(value)
		raw[header[i]] = value

		field, ok := columnAliases[strings.ToLower(header[i])]
		if !ok || value == "" {
			continue
		}
		switch field {
		case "barcode":
			item.Barcode = value
		case "serial":
			item.Serial = value
		case "manufacturer":
			item.Manufacturer = value
		case "model":
			item.Model = value
		case "processor":
			item.Processor = value
		case "memory":
			item.Memory = value
		case "storage":
			item.Storage = value
		case "battery":
			item.Battery = value
			item.HasBattery = !strings.EqualFold(value, "no") && !strings.EqualFold(value, "none")
		case "condition_grade":
			item.ConditionGrade = value
		case "condition_notes":
			item.ConditionNotes = value
		case "unit_price":
			if price, err := decimal.NewFromString(strings.TrimPrefix(value, "$")); err == nil {
				item.UnitPrice = price
			}
		case "quantity":
			if qty, err := strconv.Atoi(value); err == nil && qty > 0 {
				item.Quantity = qty
			}
		case "sku":
			item.SKU = value
		case "family_sku":
			item.FamilySKU = value
		}
	}

	if data, err := json.Marshal(raw); err == nil {
		item.RawData = datatypes.JSON(data)
	}
	return item
}
