package inventory

import (
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"stockoverflow/infrastructure/printing"
	"stockoverflow/models"
)

// LabelPNG renders the item's barcode as a code128 image.
func LabelPNG(item models.InventoryItem) ([]byte, error) {
	return printing.Code128PNG(item.Barcode, 900, 220)
}

// renderLabelSheetPDF prints one landscape A6 label per item.
func renderLabelSheetPDF(items []models.InventoryItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	pdf := gofpdf.New("L", "mm", "A6", "")
	pdf.SetTitle("Inventory Labels", false)
	pdf.SetAutoPageBreak(false, 0)

	for _, item := range items {
		barcodePNG, err := LabelPNG(item)
		if err != nil {
			return nil, fmt.Errorf("label for %q: %w", item.Barcode, err)
		}
		pdf.AddPage()
		pageW, _ := pdf.GetPageSize()
		margin := 6.0

		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "Unnamed Item"
		}
		nameFont := printing.FitFontSize(pdf, "Helvetica", "B", 22, 10, name, pageW-2*margin)
		pdf.SetFont("Helvetica", "B", nameFont)
		pdf.SetXY(margin, margin)
		pdf.CellFormat(pageW-2*margin, 10, name, "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetX(margin)
		pdf.CellFormat(pageW-2*margin, 6, "SKU: "+item.SKU+"  |  "+item.Category, "", 1, "C", false, 0, "")

		imgW := pageW - 2*margin
		imgH := 34.0
		printing.PlaceImage(pdf, fmt.Sprintf("item-barcode-%d", item.ID), barcodePNG, margin, 30, imgW, imgH)

		pdf.SetXY(margin, 30+imgH+3)
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(pageW-2*margin, 8, item.Barcode, "", 1, "C", false, 0, "")
	}
	return printing.Output(pdf)
}
