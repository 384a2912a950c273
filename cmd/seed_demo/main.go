package main

import (
	"time"

	"github.com/replugit/opsgo/internal/config"
	"github.com/replugit/opsgo/internal/database"
	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/utils"
	"github.com/sirupsen/logrus"
)

// Seeds a demo dataset: an operator account, a warehouse location, a
// laptop product family with two variants, and a walk-in customer.
func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	password, err := utils.HashPassword("demo1234")
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	admin := models.UserAuth{
		Username: "demo",
		Email:    "demo@example.com",
		Password: password,
		Name:     "Demo Operator",
		Role:     "admin",
	}
	if err := db.Where("email = ?", admin.Email).FirstOrCreate(&admin).Error; err != nil {
		log.Fatalf("Failed to seed operator: %v", err)
	}

	location := models.Location{
		Name:            "Main Warehouse",
		Code:            "WH-MAIN",
		DefaultLocation: true,
	}
	if err := db.Where("code = ?", location.Code).FirstOrCreate(&location).Error; err != nil {
		log.Fatalf("Failed to seed location: %v", err)
	}

	family := models.ProductFamily{
		SKU:  "LAT5400",
		Name: "Dell Latitude 5400",
	}
	if err := db.Where("sku = ?", family.SKU).FirstOrCreate(&family).Error; err != nil {
		log.Fatalf("Failed to seed product family: %v", err)
	}

	variants := []models.Product{
		{
			Name:        "Dell Latitude 5400 i5/8GB/256GB",
			SKU:         models.StringPtr("LAT5400-I5-8-256"),
			ProductType: "laptop",
			Platform:    models.PlatformWalmartCA,
			FamilyID:    &family.ID,
			PlatformData: models.JSONB{
				string(models.PlatformWalmartCA): map[string]interface{}{
					"wpid": "2KDemoWPID01",
				},
			},
		},
		{
			Name:        "Dell Latitude 5400 i7/16GB/512GB",
			SKU:         models.StringPtr("LAT5400-I7-16-512"),
			ProductType: "laptop",
			Platform:    models.PlatformWalmartCA,
			FamilyID:    &family.ID,
			PlatformData: models.JSONB{
				string(models.PlatformWalmartCA): map[string]interface{}{
					"wpid": "2KDemoWPID02",
				},
			},
		},
	}
	for i := range variants {
		if err := db.Where("sku = ?", *variants[i].SKU).FirstOrCreate(&variants[i]).Error; err != nil {
			log.Fatalf("Failed to seed product: %v", err)
		}
	}

	customer := models.Customer{
		Name:        "Walk-in Customer",
		PhoneNumber: models.StringPtr("+1-555-0100"),
		Platform:    models.PlatformManual,
	}
	if err := db.Where("phone_number = ?", *customer.PhoneNumber).FirstOrCreate(&customer).Error; err != nil {
		log.Fatalf("Failed to seed customer: %v", err)
	}

	log.Infof("✅ Demo data seeded at %s", time.Now().Format(time.RFC3339))
}
