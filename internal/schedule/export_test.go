package schedule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

func TestExportXLSX(t *testing.T) {
	groups := []DayGroup{
		{
			Date: "2025-07-20",
			Events: []model.ScheduleEvent{
				{WorksheetID: 57483, StartDate: "2025-07-20 08:00:00", EndDate: "2025-09-30 18:00:00",
					Location: "AIGP-170", Status: model.StatusInProgress},
			},
		},
		{
			Date: "2025-07-21",
			Events: []model.ScheduleEvent{
				{WorksheetID: 57484, StartDate: "2025-07-21 09:00:00", Location: "AIGP-171", Status: model.StatusPending},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "schedule.xlsx")
	require.NoError(t, ExportXLSX(groups, path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Schedule", sheet.Name)
	require.Len(t, sheet.Rows, 3) // header + 2 events

	assert.Equal(t, "Date", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "2025-07-20", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "57483", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "AIGP-170", sheet.Rows[1].Cells[4].Value)
	assert.Equal(t, "in_progress", sheet.Rows[1].Cells[5].Value)
}

func TestExportXLSX_BadPath(t *testing.T) {
	err := ExportXLSX(nil, filepath.Join(t.TempDir(), "missing", "schedule.xlsx"))
	assert.Error(t, err)
}
