package checkout

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"stockoverflow/infrastructure/printing"
)

// renderSlipPDF prints a pick slip for one checkout: header, order barcode and line table.
func renderSlipPDF(view CheckoutView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Checkout %d", view.ID), false)
	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	margin := 15.0
	contentW := pageW - 2*margin

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(contentW, 12, "Checkout Slip", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(contentW, 7, "Order: "+view.OrderNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 7, "VIN: "+view.VIN, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 7, "Badge: "+view.UserUniqueID, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 7, "Date: "+view.CreatedAt.Format("02/01/2006, 15:04:05"), "", 1, "L", false, 0, "")

	if view.OrderNumber != "" {
		code, err := printing.Code128PNG(view.OrderNumber, 800, 160)
		if err != nil {
			return nil, err
		}
		y := pdf.GetY() + 4
		printing.PlaceImage(pdf, fmt.Sprintf("order-%d", view.ID), code, margin, y, 90, 18)
		pdf.SetY(y + 24)
	}

	colW := []float64{contentW * 0.40, contentW * 0.25, contentW * 0.12, contentW * 0.23}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Part", "Barcode", "Damaged", "Reason"} {
		pdf.CellFormat(colW[i], 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range view.Parts {
		damaged := "No"
		if line.Damaged {
			damaged = "Yes"
		}
		nameSize := printing.FitFontSize(pdf, "Helvetica", "", 10, 6, line.PartName, colW[0]-2)
		pdf.SetFont("Helvetica", "", nameSize)
		pdf.CellFormat(colW[0], 7, line.PartName, "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(colW[1], 7, line.PartBarcode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 7, damaged, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[3], 7, line.EditReason, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, fmt.Sprintf("Lines: %d", len(view.Parts)), "", 1, "R", false, 0, "")
	return printing.Output(pdf)
}
