package compliancehandler

import (
	"encoding/csv"
	"io"

	"ppewatch/internal/domain/compliance"
)

var exportHeader = []string{"Timestamp", "ID Number", "Hardhat", "Vest", "Gloves", "Entry/Exit"}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// WriteCSV renders events in the dashboard export layout.
func WriteCSV(w io.Writer, events []compliance.Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range events {
		if err := writer.Write([]string{
			e.Timestamp,
			e.EmployeeID,
			yesNo(e.Hardhat),
			yesNo(e.Vest),
			yesNo(e.Gloves),
			string(e.Direction),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
