package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/rollup"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/schedule"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

var (
	scheduleFilter string
	scheduleXLSX   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show worksheet events grouped by day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := scheduleEvents(ctx, st)
		if err != nil {
			return err
		}

		groups := schedule.Project(events, scheduleFilter)
		if len(groups) == 0 {
			zap.L().Info("no schedule events found")
			return nil
		}

		if scheduleXLSX != "" {
			if err := schedule.ExportXLSX(groups, scheduleXLSX); err != nil {
				return err
			}
			zap.L().Info("schedule exported", zap.String("path", scheduleXLSX))
			return nil
		}

		formatSchedule(os.Stdout, groups)
		return nil
	},
}

func scheduleEvents(ctx context.Context, st store.Store) ([]model.ScheduleEvent, error) {
	sheets, err := st.ListWorksheets(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]model.ScheduleEvent, 0, len(sheets))
	for _, ws := range sheets {
		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{WorksheetID: ws.ID})
		if err != nil {
			return nil, err
		}
		events = append(events, schedule.EventFromWorksheet(ws, rollup.DeriveOperationStatus(assignments)))
	}
	return events, nil
}

func formatSchedule(w io.Writer, groups []schedule.DayGroup) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWORKSHEET\tSTART\tEND\tLOCATION\tSTATUS")
	for _, g := range groups {
		for _, ev := range g.Events {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
				g.Date, ev.WorksheetID, ev.StartDate, ev.EndDate, ev.Location, ev.Status)
		}
	}
	tw.Flush()
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleFilter, "status", schedule.FilterAll, "filter events by status")
	scheduleCmd.Flags().StringVar(&scheduleXLSX, "xlsx", "", "export to spreadsheet instead of printing")
	rootCmd.AddCommand(scheduleCmd)
}
