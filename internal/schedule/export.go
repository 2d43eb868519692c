package schedule

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExportXLSX writes the projected schedule to a spreadsheet, one header
// row per day followed by that day's events.
func ExportXLSX(groups []DayGroup, path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Schedule")
	if err != nil {
		return eris.Wrap(err, "schedule: add sheet")
	}

	header := sheet.AddRow()
	for _, title := range []string{"Date", "Worksheet", "Start", "End", "Location", "Status"} {
		header.AddCell().Value = title
	}

	for _, g := range groups {
		for _, ev := range g.Events {
			row := sheet.AddRow()
			row.AddCell().Value = g.Date
			row.AddCell().Value = strconv.Itoa(ev.WorksheetID)
			row.AddCell().Value = ev.StartDate
			row.AddCell().Value = ev.EndDate
			row.AddCell().Value = ev.Location
			row.AddCell().Value = string(ev.Status)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "schedule: save %s", path)
	}
	return nil
}
