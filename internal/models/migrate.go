package models

// All returns every model in schema migration order. Parents come
// before children so foreign keys resolve on a fresh database.
func All() []interface{} {
	return []interface{}{
		&UserAuth{},
		&Customer{},
		&CustomerChangeLog{},
		&ProductFamily{},
		&Product{},
		&Location{},
		&StockLevel{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&ProductUnit{},
		&ProductUnitAssignmentHistory{},
		&ReceiptBatch{},
		&BatchItem{},
		&InventoryReceipt{},
		&Manifest{},
		&ManifestItem{},
		&QualityControlRecord{},
		&Warranty{},
		&WarrantyLog{},
	}
}
