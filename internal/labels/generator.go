package labels

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/replugit/opsgo/internal/models"
	"github.com/skip2/go-qrcode"
)

// Layout holds the grid geometry for a label sheet
type Layout struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLayout is a 3x8 grid on A4
var DefaultLayout = Layout{
	Cols:       3,
	Rows:       8,
	MarginTop:  10,
	MarginLeft: 7,
	GapX:       3,
	GapY:       2,
}

// UnitLabel is the data printed on one unit label. The QR encodes the
// warranty activation URL; serial and activation code print as text.
type UnitLabel struct {
	Serial         string
	ActivationCode string
	ProductName    string
}

// ForUnits builds label data from product units
func ForUnits(units []models.ProductUnit) []UnitLabel {
	labels := make([]UnitLabel, 0, len(units))
	for i := range units {
		label := UnitLabel{ActivationCode: units[i].ActivationCode}
		if units[i].SerialNumber != nil {
			label.Serial = *units[i].SerialNumber
		}
		if units[i].Product != nil {
			label.ProductName = units[i].Product.Name
		}
		labels = append(labels, label)
	}
	return labels
}

// GeneratePDF renders unit labels onto an A4 sheet grid
func GeneratePDF(labels []UnitLabel, layout Layout, baseURL string) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to generate")
	}
	if layout.Cols < 1 || layout.Rows < 1 {
		layout = DefaultLayout
	}
	if baseURL == "" {
		baseURL = "https://warranty.replugit.com/activate"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	// A4 dimensions
	pageWidth, pageHeight := 210.0, 297.0

	totalGapX := float64(layout.Cols-1) * layout.GapX
	totalGapY := float64(layout.Rows-1) * layout.GapY

	availW := pageWidth - (layout.MarginLeft * 2)
	availH := pageHeight - (layout.MarginTop * 2)

	labelW := (availW - totalGapX) / float64(layout.Cols)
	labelH := (availH - totalGapY) / float64(layout.Rows)

	labelsPerPage := layout.Cols * layout.Rows

	for i, label := range labels {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		indexOnPage := i % labelsPerPage
		col := indexOnPage % layout.Cols
		row := indexOnPage / layout.Cols

		x := layout.MarginLeft + float64(col)*(labelW+layout.GapX)
		y := layout.MarginTop + float64(row)*(labelH+layout.GapY)

		qrContent := fmt.Sprintf("%s?serial=%s&code=%s", baseURL, label.Serial, label.ActivationCode)
		qrPng, err := qrcode.Encode(qrContent, qrcode.Low, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode QR for %s: %w", label.Serial, err)
		}

		imgName := fmt.Sprintf("qr_%d", i)
		imgOptions := gofpdf.ImageOptions{
			ImageType: "PNG",
			ReadDpi:   true,
		}
		reader := bytes.NewReader(qrPng)
		_ = pdf.RegisterImageOptionsReader(imgName, imgOptions, reader)

		// QR centered, text below
		qrSize := labelH * 0.6
		if qrSize > labelW {
			qrSize = labelW * 0.9
		}
		qrX := x + (labelW-qrSize)/2
		qrY := y + (labelH-qrSize)/2 - 3

		pdf.ImageOptions(imgName, qrX, qrY, qrSize, qrSize, false, imgOptions, 0, "")

		pdf.SetXY(x, y+labelH-9)
		pdf.SetFontSize(7)
		pdf.CellFormat(labelW, 4, label.Serial, "", 0, "C", false, 0, "")

		pdf.SetXY(x, y+labelH-5)
		pdf.SetFontSize(8)
		pdf.CellFormat(labelW, 4, label.ActivationCode, "", 0, "C", false, 0, "")

		if label.ProductName != "" {
			pdf.SetXY(x, y+1)
			pdf.SetFontSize(5)
			name := label.ProductName
			if len(name) > 40 {
				name = name[:40]
			}
			pdf.CellFormat(labelW, 3, name, "", 0, "C", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
