package infra

// pdf.go: customer bill receipts as PDF using go-pdf/fpdf.
// The layout is the same command stream the thermal printers get, set in a
// monospace font on a page sized to the receipt:
//   - Business header and timestamp
//   - Item lines with modifiers
//   - Discounts, payments and totals
//   - VAT number
//
// The output file is saved to storagePath/bill_{reference}_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"billpos/internal/receipt"

	"github.com/go-pdf/fpdf"
)

const (
	pdfPageWidth  = 80.0 // mm, 80mm roll
	pdfMargin     = 4.0
	pdfLineHeight = 3.4
	pdfFontSize   = 7.0
)

// GenerateBillPDF renders the customer receipt for a bill.
// storagePath is created if needed. Returns the path of the generated file.
func GenerateBillPDF(in receipt.BillInput, storagePath string) (string, error) {
	if in.Bill == nil {
		return "", fmt.Errorf("pdf: no bill")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("bill_%d_%s.pdf", in.Bill.Reference, in.Bill.ID.String()[:8])
	filePath := filepath.Join(storagePath, fileName)

	lines := receipt.Lines(receipt.ComposeBill(in))
	height := 2*pdfMargin + float64(len(lines)+1)*pdfLineHeight

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pdfPageWidth, Ht: height},
	})
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// core fonts are cp1252; the translator covers currency symbols like £ and €
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	contentW := pdfPageWidth - 2*pdfMargin

	pdf.SetFont("Courier", "", pdfFontSize)
	for _, line := range lines {
		pdf.CellFormat(contentW, pdfLineHeight, tr(line), "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
