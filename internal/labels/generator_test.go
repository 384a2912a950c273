package labels

import (
	"fmt"
	"strings"
	"testing"

	"github.com/replugit/opsgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForUnits(t *testing.T) {
	units := []models.ProductUnit{
		{
			SerialNumber:   models.StringPtr("SN-001"),
			ActivationCode: "AB12",
			Product:        &models.Product{Name: "Dell Latitude 5400"},
		},
		{
			ActivationCode: "CD34",
		},
	}

	labels := ForUnits(units)
	require.Len(t, labels, 2)
	assert.Equal(t, "SN-001", labels[0].Serial)
	assert.Equal(t, "AB12", labels[0].ActivationCode)
	assert.Equal(t, "Dell Latitude 5400", labels[0].ProductName)
	assert.Empty(t, labels[1].Serial)
	assert.Equal(t, "CD34", labels[1].ActivationCode)
}

func TestGeneratePDF(t *testing.T) {
	_, err := GeneratePDF(nil, DefaultLayout, "")
	assert.Error(t, err, "empty label sets are rejected")

	labels := make([]UnitLabel, 0, 30)
	for i := 0; i < 30; i++ {
		labels = append(labels, UnitLabel{
			Serial:         fmt.Sprintf("SN-%03d", i),
			ActivationCode: "AB12",
			ProductName:    "Dell Latitude 5400 i5/8GB/256GB refurbished grade A",
		})
	}

	pdf, err := GeneratePDF(labels, DefaultLayout, "")
	require.NoError(t, err)
	require.Greater(t, len(pdf), 1000)
	assert.True(t, strings.HasPrefix(string(pdf[:5]), "%PDF-"), "output is a PDF document")
}

func TestGeneratePDF_FallsBackToDefaultLayout(t *testing.T) {
	pdf, err := GeneratePDF([]UnitLabel{{Serial: "SN-1", ActivationCode: "ZZ99"}}, Layout{}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
