package output

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/OrderLens/OrderLens-Go/utils"
)

// Entry is one labeled value on the report
type Entry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Lines renders entries as the "label: value" lines that appear on the
// report, in order
func Lines(entries []Entry) []string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s: %s", e.Label, e.Value)
	}
	return lines
}

// Exporter writes single-page PDF prediction reports
type Exporter struct {
	title string
}

// NewExporter creates a report exporter with the given document title
func NewExporter(title string) *Exporter {
	if title == "" {
		title = "E-Commerce Prediction Report"
	}
	return &Exporter{title: title}
}

// Export writes a one-page A4 PDF with the centered title followed by one
// line per entry, in the order given, to destination
func (e *Exporter) Export(entries []Entry, destination string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, e.title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	for _, line := range Lines(entries) {
		pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(destination); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	utils.GetLogger().Info("Report exported",
		utils.String("destination", destination),
		utils.Int("entries", len(entries)),
		utils.Component("report"))

	return nil
}
