package customers

import (
	"testing"

	"github.com/replugit/opsgo/internal/models"
	"github.com/replugit/opsgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_PhoneOnlyCustomer(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	customer, created, err := svc.GetOrCreate(Lookup{
		Name:        "Walk-in",
		PhoneNumber: "+1-555-0142",
		Platform:    models.PlatformManual,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, customer.Email)
	require.NotNil(t, customer.PhoneNumber)
	assert.Equal(t, "+1-555-0142", *customer.PhoneNumber)

	// Second lookup by the same phone returns the existing record
	again, created, err := svc.GetOrCreate(Lookup{
		Name:        "Different Name",
		PhoneNumber: "+1-555-0142",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, customer.ID, again.ID)
}

func TestGetOrCreate_MatchesRelayEmail(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	first, created, err := svc.GetOrCreate(Lookup{
		Name:       "Marketplace Buyer",
		RelayEmail: "abc123@relay.walmart.com",
		Platform:   models.PlatformWalmartCA,
	})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.GetOrCreate(Lookup{
		Name:       "Marketplace Buyer",
		RelayEmail: "abc123@relay.walmart.com",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestCustomer_RequiresAnyContact(t *testing.T) {
	db := testutil.OpenDB(t)

	err := db.Create(&models.Customer{Name: "No Contact"}).Error
	assert.True(t, models.IsValidationError(err))
}

func TestCustomer_AddressValidation(t *testing.T) {
	db := testutil.OpenDB(t)

	err := db.Create(&models.Customer{
		Name:  "Partial Address",
		Email: models.StringPtr("partial@example.com"),
		Address: models.JSONB{
			"name":  "Partial Address",
			"city":  "Toronto",
			"state": "ON",
		},
	}).Error
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Contains(t, err.Error(), "address1")
	assert.Contains(t, err.Error(), "country")
	assert.Contains(t, err.Error(), "postalCode")

	err = db.Create(&models.Customer{
		Name:  "Full Address",
		Email: models.StringPtr("full@example.com"),
		Address: models.JSONB{
			"name":       "Full Address",
			"address1":   "123 Main St",
			"city":       "Toronto",
			"state":      "ON",
			"postalCode": "M5V 1A1",
			"country":    "CA",
		},
	}).Error
	assert.NoError(t, err)
}

func TestUpdate_WritesOneLogPerChangedField(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	customer, _, err := svc.GetOrCreate(Lookup{
		Name:  "Before Name",
		Email: "update@example.com",
	})
	require.NoError(t, err)

	updated, err := svc.Update(customer.ID, map[string]string{
		"name":         "After Name",
		"phone_number": "+1-555-0199",
		"email":        "update@example.com", // unchanged, no log entry
	}, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "After Name", updated.Name)

	entries, err := svc.ChangeLog(customer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byField := map[string]models.CustomerChangeLog{}
	for _, e := range entries {
		byField[e.FieldName] = e
	}
	assert.Equal(t, "Before Name", byField["name"].OldValue)
	assert.Equal(t, "After Name", byField["name"].NewValue)
	assert.Equal(t, "", byField["phone_number"].OldValue)
	assert.Equal(t, "+1-555-0199", byField["phone_number"].NewValue)
	assert.Equal(t, "ops@example.com", byField["name"].UpdatedBy)
}

func TestUpdate_UnknownFieldRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	customer, _, err := svc.GetOrCreate(Lookup{Name: "X", Email: "unknown@example.com"})
	require.NoError(t, err)

	_, err = svc.Update(customer.ID, map[string]string{"platform": "amazon"}, "tester")
	assert.True(t, models.IsValidationError(err))
}

func TestMerge_MovesRelationsAndFillsContacts(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	primary, _, err := svc.GetOrCreate(Lookup{
		Name:  "Primary",
		Email: "primary@example.com",
	})
	require.NoError(t, err)
	duplicate, _, err := svc.GetOrCreate(Lookup{
		Name:        "Duplicate",
		PhoneNumber: "+1-555-0777",
	})
	require.NoError(t, err)

	order := models.Order{
		OrderNumber: "ORD-MERGE-1",
		CustomerID:  duplicate.ID,
	}
	require.NoError(t, db.Create(&order).Error)

	merged, err := svc.Merge(primary.ID, duplicate.ID, "ops@example.com")
	require.NoError(t, err)

	require.NotNil(t, merged.PhoneNumber)
	assert.Equal(t, "+1-555-0777", *merged.PhoneNumber, "missing contact filled from duplicate")
	require.NotNil(t, merged.Email)
	assert.Equal(t, "primary@example.com", *merged.Email)

	var movedOrder models.Order
	require.NoError(t, db.First(&movedOrder, order.ID).Error)
	assert.Equal(t, primary.ID, movedOrder.CustomerID)

	err = db.First(&models.Customer{}, duplicate.ID).Error
	assert.Error(t, err, "duplicate record is gone")

	entries, err := svc.ChangeLog(primary.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "merged_from", entries[0].FieldName)
}

func TestMerge_SelfMergeRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewService(db, testutil.Logger())

	customer, _, err := svc.GetOrCreate(Lookup{Name: "Solo", Email: "solo@example.com"})
	require.NoError(t, err)

	_, err = svc.Merge(customer.ID, customer.ID, "tester")
	assert.True(t, models.IsValidationError(err))
}
