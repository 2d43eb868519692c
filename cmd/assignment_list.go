package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

var listStatus string

var assignmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignments, optionally filtered",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{
			WorksheetID:   assignWorksheetID,
			OperationCode: assignOperation,
			Status:        model.Status(listStatus),
		})
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			zap.L().Info("no assignments found")
			return nil
		}

		formatAssignments(os.Stdout, assignments)
		return nil
	},
}

func formatAssignments(w io.Writer, assignments []model.Assignment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKSHEET\tOPERATION\tPROPERTY\tPOLYGON\tOPERATOR\tSTATUS\tACTIVITIES")
	for _, a := range assignments {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%d\n",
			a.WorksheetID, a.OperationCode, a.RuralPropertyID, a.PolygonID,
			a.Operator, a.Status, len(a.Activities))
	}
	tw.Flush()
}

func init() {
	assignmentListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	assignmentCmd.AddCommand(assignmentListCmd)
}
