package reprimand

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WriteNotice renders a printable disciplinary notice for r.
func WriteNotice(w io.Writer, r Reprimand) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("PPE Reprimand Notice", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "PPE Compliance Reprimand")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Reference: %s", r.ID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", r.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Issued: %s", r.IssuedAt.Format("2006-01-02 15:04")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Severity: %s", strings.ToUpper(string(r.Severity))))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", r.Status))
	pdf.Ln(10)

	violations := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		violations[i] = string(v)
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Missing equipment")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, strings.Join(violations, ", "))
	pdf.Ln(10)

	if r.Retraining != nil {
		label := string(r.Retraining.Type)
		if info, ok := LookupRetraining(r.Retraining.Type); ok {
			label = info.Label
			if info.Duration > 0 {
				label += fmt.Sprintf(" (%s)", info.Duration)
			}
		}
		state := "assigned"
		if r.Retraining.Completed {
			state = "completed"
		}
		pdf.Cell(0, 8, fmt.Sprintf("Retraining: %s, %s %s", label, state, r.Retraining.AssignedAt.Format("2006-01-02")))
		pdf.Ln(10)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Notes")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, r.Notes, "", "L", false)
	pdf.Ln(14)
	pdf.Cell(0, 8, "Employee signature: ______________________")
	pdf.Ln(10)
	pdf.Cell(0, 8, "Supervisor signature: ____________________")

	return pdf.Output(w)
}
