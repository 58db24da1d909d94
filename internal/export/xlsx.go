package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/emilianohg/umbrella/internal/models"
)

const (
	SheetAllocation = "Allocation"
	SheetMeetings   = "Meetings"
)

// WriteXLSX writes a workbook with an Allocation and a Meetings sheet.
func WriteXLSX(w io.Writer, fr models.FinalReport) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default workbook starts with Sheet1; rename it instead of adding one.
	if err := f.SetSheetName("Sheet1", SheetAllocation); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetMeetings); err != nil {
		return err
	}

	allocation := [][]any{{"Kind", "Name", "Hours", "Percentage"}}
	for _, r := range Rows(fr) {
		allocation = append(allocation, []any{r.Kind, r.Name, r.Hours, r.Percentage})
	}
	if err := writeRows(f, SheetAllocation, allocation); err != nil {
		return err
	}

	meetings := [][]any{{"ID", "Subject", "Start", "End", "Hours", "Customer", "Project", "Type", "Confidence", "Source", "Note"}}
	for _, m := range Meetings(fr) {
		meetings = append(meetings, []any{
			m.ID, m.Subject,
			m.Start.Format("2006-01-02 15:04"), m.End.Format("2006-01-02 15:04"),
			m.Hours + m.ExtraHours, m.Customer, m.Project, m.Type, m.Confidence, m.Source, m.Note,
		})
	}
	if err := writeRows(f, SheetMeetings, meetings); err != nil {
		return err
	}

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
